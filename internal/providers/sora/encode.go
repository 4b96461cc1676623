package sora

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EncodeBytes renders raw image bytes as the base64 payload the edits API
// expects.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeFile reads an image from disk and renders it as the base64 payload
// the edits API expects.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("sora: read image: %w", err)
	}
	return EncodeBytes(data), nil
}

// NormalizeBase64 accepts either a data URI (data:image/...;base64,xxxx) or a
// bare base64 string and returns the bare base64 payload. It rejects input
// that does not decode.
func NormalizeBase64(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("sora: empty image payload")
	}
	if strings.HasPrefix(input, "data:") {
		_, encoded, ok := strings.Cut(input, ",")
		if !ok {
			return "", errors.New("sora: malformed data uri")
		}
		input = strings.TrimSpace(encoded)
	}
	if _, err := base64.StdEncoding.DecodeString(input); err != nil {
		return "", errors.New("sora: image payload is not valid base64")
	}
	return input, nil
}

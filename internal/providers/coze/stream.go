package coze

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	eventMessageDelta  = "conversation.message.delta"
	eventChatCompleted = "conversation.chat.completed"
	eventChatFailed    = "conversation.chat.failed"
	eventError         = "error"
	eventDone          = "done"
)

// Stream is a finite, single-pass sequence of chat deltas. It is not
// restartable; callers drain it with Recv or abandon it with Close.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{body: body, scanner: scanner}
}

type deltaPayload struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type completedPayload struct {
	Usage Usage `json:"usage"`
}

type errorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Recv returns the next delta. It returns io.EOF after the completion event
// has been delivered, and an *APIError when the provider reports a failure
// in-band. Any other error is a transport failure.
func (s *Stream) Recv() (Delta, error) {
	if s.done {
		return Delta{}, io.EOF
	}
	event := ""
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			delta, ok, err := s.dispatch(event, data)
			if err != nil {
				s.done = true
				return Delta{}, err
			}
			if ok {
				return delta, nil
			}
		}
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Delta{}, err
	}
	return Delta{}, io.EOF
}

func (s *Stream) dispatch(event, data string) (Delta, bool, error) {
	switch event {
	case eventMessageDelta:
		var payload deltaPayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Delta{}, false, nil
		}
		// Only the assistant answer is relayed; tool and verbose
		// messages are skipped.
		if payload.Type != "" && payload.Type != "answer" {
			return Delta{}, false, nil
		}
		return Delta{Type: DeltaContent, Content: payload.Content}, true, nil
	case eventChatCompleted:
		var payload completedPayload
		_ = json.Unmarshal([]byte(data), &payload)
		s.done = true
		return Delta{Type: DeltaCompleted, Usage: payload.Usage}, true, nil
	case eventChatFailed, eventError:
		var payload errorPayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Msg == "" {
			return Delta{}, false, &APIError{Message: data}
		}
		return Delta{}, false, &APIError{Code: payload.Code, Message: payload.Msg}
	case eventDone:
		s.done = true
		return Delta{}, false, io.EOF
	}
	return Delta{}, false, nil
}

// Close releases the underlying connection. It is safe to call after Recv has
// returned io.EOF and after abandoning the stream mid-way.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

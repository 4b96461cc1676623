package sqlinline

// QInsertUsageTask records one billable task at most once. The unique
// constraint on task_id is the dedup mechanism: a conflicting insert affects
// zero rows and the caller must not touch the counter.
const QInsertUsageTask = `--sql 84d2e6f1-9b30-4a75-c8e4-1f6a0d3b9c57
insert into usage_tasks (id, user_id, task_id, service_kind, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, now())
on conflict (task_id) do nothing;
`

const QIncrementUsage = `--sql 5a9c1b83-e247-4d06-9f38-6b0e4c7a2d19
insert into user_usage (user_id, used_count, updated_at)
values ($1::uuid, 1, now())
on conflict (user_id) do update set
    used_count = user_usage.used_count + 1,
    updated_at = now()
returning used_count;
`

const QSelectUsedCount = `--sql b36f8d40-27a5-4c19-8e63-d1b9f0c5e284
select coalesce(
    (select used_count from user_usage where user_id = $1::uuid),
    0
);
`

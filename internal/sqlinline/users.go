package sqlinline

const QInsertUser = `--sql 3f1c7a9e-55d2-4b0a-9c16-8f0a4b3e6d21
insert into users (id, username, password_hash, status, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, 'active', now(), now())
returning id;
`

const QSelectUserByUsername = `--sql 9a47d8b2-1e64-4f3a-8d0c-2b5e9f7c4a18
select id, username, password_hash, coalesce(tier, ''), status, last_login, coalesce(last_login_country, ''), created_at, updated_at
from users
where username = $1::text
limit 1;
`

const QSelectUserByID = `--sql 61b0f3d4-8c2a-47e9-b5d1-0a9e6c3f8b72
select id, username, password_hash, coalesce(tier, ''), status, last_login, coalesce(last_login_country, ''), created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QUpdateLastLogin = `--sql c58e2a71-0d9b-4f46-a3e8-7b1d5c0f9e34
update users
set last_login = now(),
    last_login_country = nullif($2::text, ''),
    updated_at = now()
where id = $1::uuid;
`

const QUpdateUsername = `--sql 7d3b9f50-6a1e-4c82-9e07-4f8a2d6b1c95
update users
set username = $2::text, updated_at = now()
where id = $1::uuid
returning username;
`

const QAssignTierByUsername = `--sql 2e8f4c06-b7d3-49a1-8c52-d90b6e1a3f47
update users
set tier = $2::text, updated_at = now()
where username = $1::text
returning id, username, coalesce(tier, '');
`

const QListUsers = `--sql f04a6d28-3c91-4e5b-a7d0-58c2b9e1f863
select username, coalesce(tier, ''), status, created_at
from users
order by created_at asc;
`

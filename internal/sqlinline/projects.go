package sqlinline

const QInsertProject = `--sql 4c7e0a92-d518-4b36-af64-29c8e1d5b073
insert into projects (id, user_id, title, style, image_url, analysis_text, prompt_text, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, now(), now())
returning id, created_at, updated_at;
`

const QSelectProject = `--sql e19b5f27-63c0-48da-92e7-7a4d0b8c6f15
select id, user_id, title, style, coalesce(image_url, ''), coalesce(analysis_text, ''), coalesce(prompt_text, ''), created_at, updated_at
from projects
where id = $1::uuid and user_id = $2::uuid
limit 1;
`

const QListProjects = `--sql 0d6a3e81-f94c-4275-b1d8-c53e9a0f7b26
select id, user_id, title, style, coalesce(image_url, ''), coalesce(analysis_text, ''), coalesce(prompt_text, ''), created_at, updated_at
from projects
where user_id = $1::uuid
order by created_at desc;
`

const QUpdateProject = `--sql a825c1f6-40b9-4e37-8d52-61f0e3c9d748
update projects
set title = coalesce(nullif($3::text, ''), title),
    style = coalesce(nullif($4::text, ''), style),
    image_url = coalesce(nullif($5::text, ''), image_url),
    analysis_text = coalesce(nullif($6::text, ''), analysis_text),
    prompt_text = coalesce(nullif($7::text, ''), prompt_text),
    updated_at = now()
where id = $1::uuid and user_id = $2::uuid
returning id, user_id, title, style, coalesce(image_url, ''), coalesce(analysis_text, ''), coalesce(prompt_text, ''), created_at, updated_at;
`

const QDeleteProject = `--sql 6f2d8b43-17ea-4c90-a6b5-3e8c0d1f9a62
delete from projects
where id = $1::uuid and user_id = $2::uuid;
`

package redis

import "github.com/redis/go-redis/v9"

var (
	upsertLimit      = redis.NewScript(upsertLimitScript)
	deleteLimit      = redis.NewScript(deleteLimitScript)
	addNotification  = redis.NewScript(addNotificationScript)
	clearNotifs      = redis.NewScript(clearNotificationsScript)
	upsertHistory    = redis.NewScript(upsertHistoryScript)
	deleteHistoryOld = redis.NewScript(deleteHistoryBeforeScript)
)

const (
	// upsertLimitScript replaces a limit hash and keeps the index in step
	upsertLimitScript = `
local limit_key = KEYS[1]   -- screenguard:limit:{package}
local index_key = KEYS[2]   -- screenguard:limits

local package_id = ARGV[1]

redis.call('DEL', limit_key)
redis.call('HSET', limit_key,
  'package', package_id,
  'display_name', ARGV[2],
  'limit_minutes', ARGV[3],
  'active', ARGV[4]
)
redis.call('SADD', index_key, package_id)

return 'OK'
`

	// deleteLimitScript returns 0 when the limit does not exist
	deleteLimitScript = `
local limit_key = KEYS[1]
local index_key = KEYS[2]

if redis.call('EXISTS', limit_key) == 0 then
  return 0
end

redis.call('DEL', limit_key)
redis.call('SREM', index_key, ARGV[1])
return 1
`

	// addNotificationScript allocates the next id and appends the entry
	addNotificationScript = `
local seq_key = KEYS[1]     -- screenguard:notification:seq
local index_key = KEYS[2]   -- screenguard:notifications
local prefix = ARGV[1]      -- screenguard:notification:

local id = redis.call('INCR', seq_key)
local entry_key = prefix .. id

redis.call('HSET', entry_key,
  'id', id,
  'title', ARGV[2],
  'message', ARGV[3],
  'timestamp', ARGV[4]
)
redis.call('ZADD', index_key, id, id)

return id
`

	// clearNotificationsScript deletes every entry but keeps the id sequence
	clearNotificationsScript = `
local index_key = KEYS[1]
local prefix = ARGV[1]

local ids = redis.call('ZRANGE', index_key, 0, -1)
for _, id in ipairs(ids) do
  redis.call('DEL', prefix .. id)
end
redis.call('DEL', index_key)

return #ids
`

	// upsertHistoryScript stores a day summary, scored by YYYYMMDD
	upsertHistoryScript = `
local history_key = KEYS[1]   -- screenguard:history:{date}
local index_key = KEYS[2]     -- screenguard:history

local date = ARGV[1]

redis.call('HSET', history_key,
  'date', date,
  'total_ms', ARGV[2],
  'app_count', ARGV[3],
  'most_used_app', ARGV[4],
  'day_name', ARGV[5],
  'date_label', ARGV[6]
)
redis.call('ZADD', index_key, tonumber(ARGV[7]), date)

return 'OK'
`

	// deleteHistoryBeforeScript removes days scored strictly below the cutoff
	deleteHistoryBeforeScript = `
local index_key = KEYS[1]
local prefix = ARGV[1]
local cutoff = '(' .. ARGV[2]

local dates = redis.call('ZRANGEBYSCORE', index_key, '-inf', cutoff)
for _, date in ipairs(dates) do
  redis.call('DEL', prefix .. date)
end
if #dates > 0 then
  redis.call('ZREMRANGEBYSCORE', index_key, '-inf', cutoff)
end

return #dates
`
)

package seatmap

import "github.com/go-redis/redis/v8"

// Seat cells live in one hash per showing: field "row:col", value
// "state:lockedAtEpochSeconds". An absent field is a free seat, so a fresh
// showing costs nothing to store. Every transition below runs as a single
// EVAL, which is what makes concurrent batches on the same showing safe: the
// store serializes them, no caller ever sees a half-applied batch.

// lockScript validates the whole batch before touching anything. A LOCKED
// cell whose lock has passed its timeout counts as free again (lazy expiry).
//
// KEYS[1] seat map key
// ARGV[1] lock timeout seconds, ARGV[2] now (epoch seconds), ARGV[3] seat
// count, ARGV[4..] row,col pairs.
var lockScript = redis.NewScript(`
local key = KEYS[1]
local timeout = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local n = tonumber(ARGV[3])

local failed = {}
for i = 0, n - 1 do
	local row = ARGV[4 + i * 2]
	local col = ARGV[5 + i * 2]
	local cell = redis.call('HGET', key, row .. ':' .. col)
	if cell then
		local sep = string.find(cell, ':')
		local state = tonumber(string.sub(cell, 1, sep - 1))
		local ts = tonumber(string.sub(cell, sep + 1))
		if state == 2 then
			failed[#failed + 1] = {row = tonumber(row), col = tonumber(col), reason = 'sold_out'}
		elseif state == 1 and ts + timeout > now then
			failed[#failed + 1] = {row = tonumber(row), col = tonumber(col), reason = 'locked'}
		end
	end
end

if #failed > 0 then
	return cjson.encode({success = false, failed_seats = failed})
end

local locked = {}
for i = 0, n - 1 do
	local row = ARGV[4 + i * 2]
	local col = ARGV[5 + i * 2]
	redis.call('HSET', key, row .. ':' .. col, '1:' .. now)
	locked[#locked + 1] = {row = tonumber(row), col = tonumber(col)}
end
return cjson.encode({success = true, locked_seats = locked})
`)

// releaseScript frees LOCKED cells. Cells whose lock already expired are
// cleaned up but not counted: by the lazy-expiry invariant they were free
// before this call. FREE and SOLD cells are untouched.
//
// KEYS[1] seat map key
// ARGV[1] lock timeout seconds, ARGV[2] now, ARGV[3] seat count, ARGV[4..]
// row,col pairs.
var releaseScript = redis.NewScript(`
local key = KEYS[1]
local timeout = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local n = tonumber(ARGV[3])

local count = 0
for i = 0, n - 1 do
	local field = ARGV[4 + i * 2] .. ':' .. ARGV[5 + i * 2]
	local cell = redis.call('HGET', key, field)
	if cell then
		local sep = string.find(cell, ':')
		local state = tonumber(string.sub(cell, 1, sep - 1))
		local ts = tonumber(string.sub(cell, sep + 1))
		if state == 1 then
			redis.call('HDEL', key, field)
			if ts + timeout > now then
				count = count + 1
			end
		end
	end
end
return count
`)

// soldScript moves FREE and LOCKED cells to SOLD. Already-SOLD cells are
// no-ops, so duplicate payment notifications cannot inflate the count.
//
// KEYS[1] seat map key
// ARGV[1] seat count, ARGV[2..] row,col pairs.
var soldScript = redis.NewScript(`
local key = KEYS[1]
local n = tonumber(ARGV[1])

local count = 0
for i = 0, n - 1 do
	local field = ARGV[2 + i * 2] .. ':' .. ARGV[3 + i * 2]
	local cell = redis.call('HGET', key, field)
	local state = 0
	if cell then
		local sep = string.find(cell, ':')
		state = tonumber(string.sub(cell, 1, sep - 1))
	end
	if state ~= 2 then
		redis.call('HSET', key, field, '2:0')
		count = count + 1
	end
end
return count
`)

// statusScript reads a rectangle of cells, reporting expired locks as free.
// JSON object keys must be strings, so rows and cols are stringified here and
// decoded back to ints on the Go side.
//
// KEYS[1] seat map key
// ARGV[1..4] rowStart rowEnd colStart colEnd, ARGV[5] lock timeout seconds,
// ARGV[6] now.
var statusScript = redis.NewScript(`
local key = KEYS[1]
local rowStart = tonumber(ARGV[1])
local rowEnd = tonumber(ARGV[2])
local colStart = tonumber(ARGV[3])
local colEnd = tonumber(ARGV[4])
local timeout = tonumber(ARGV[5])
local now = tonumber(ARGV[6])

local result = {}
for row = rowStart, rowEnd do
	local cols = {}
	for col = colStart, colEnd do
		local state = 0
		local cell = redis.call('HGET', key, row .. ':' .. col)
		if cell then
			local sep = string.find(cell, ':')
			state = tonumber(string.sub(cell, 1, sep - 1))
			if state == 1 then
				local ts = tonumber(string.sub(cell, sep + 1))
				if ts + timeout <= now then
					state = 0
				end
			end
		end
		cols[tostring(col)] = state
	end
	result[tostring(row)] = cols
end
return cjson.encode(result)
`)

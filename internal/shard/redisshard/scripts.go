// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package redisshard

// These scripts apply the same idempotent-via-Lua approach the teacher
// uses for commit application: do the existence/etag check and the
// mutation in one EVAL so a racing request can never observe a
// half-applied write.

// createBucketScript returns 1 if the bucket was created, 0 if it already existed.
const createBucketScript = `
local hkey = KEYS[1]
local zkey = KEYS[2]
local id, name, owner, mtime = ARGV[1], ARGV[2], ARGV[3], ARGV[4]
if redis.call('EXISTS', hkey) == 1 then
  return 0
end
redis.call('HSET', hkey, 'id', id, 'name', name, 'owner', owner, 'mtime', mtime)
redis.call('ZADD', zkey, 0, name)
return 1
`

// deleteBucketScript returns 1 if the bucket existed and was removed, 0 otherwise.
const deleteBucketScript = `
local hkey = KEYS[1]
local zkey = KEYS[2]
local name = ARGV[1]
if redis.call('EXISTS', hkey) == 0 then
  return 0
end
redis.call('DEL', hkey)
redis.call('ZREM', zkey, name)
return 1
`

// putObjectScript creates (mode="create") or conditionally replaces
// (mode="update") an object hash, keeping the listing zset and the
// name-hash lookup table in sync in the same atomic step.
//
// Returns 1 on success, -1 if a create collided with an existing object or
// an update targeted a missing one, -2 if an update's expected etag did
// not match the stored one.
const putObjectScript = `
local hkey = KEYS[1]
local zkey = KEYS[2]
local namesKey = KEYS[3]
local mode, expectedEtag, name, nameHash = ARGV[1], ARGV[2], ARGV[3], ARGV[4]

local exists = redis.call('EXISTS', hkey) == 1
if mode == 'create' then
  if exists then
    return -1
  end
else
  if not exists then
    return -1
  end
  if expectedEtag ~= '' then
    local current = redis.call('HGET', hkey, 'id')
    if current ~= expectedEtag then
      return -2
    end
  end
end

local fields = {}
for i = 5, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call('HSET', hkey, unpack(fields))
redis.call('ZADD', zkey, 0, name)
redis.call('HSET', namesKey, nameHash, name)
return 1
`

// deleteObjectScript removes an object iff it exists and, when
// expectedEtag is non-empty, its current etag matches.
//
// Returns 1 on success, 0 if the object did not exist, -1 on etag mismatch.
const deleteObjectScript = `
local hkey = KEYS[1]
local zkey = KEYS[2]
local namesKey = KEYS[3]
local expectedEtag, name, nameHash = ARGV[1], ARGV[2], ARGV[3]

if redis.call('EXISTS', hkey) == 0 then
  return 0
end
if expectedEtag ~= '' then
  local current = redis.call('HGET', hkey, 'id')
  if current ~= expectedEtag then
    return -1
  end
end
redis.call('DEL', hkey)
redis.call('ZREM', zkey, name)
redis.call('HDEL', namesKey, nameHash)
return 1
`

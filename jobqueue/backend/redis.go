package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

var _ Backend = (*RedisBackend)(nil)

type RedisConfig struct {
	// URL, when set, wins over the discrete connection fields.
	URL             string
	Host            string
	Port            int
	DB              int
	Password        string
	Username        string
	PoolSize        int
	MaxRetries      int
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	Prefix          string
}

// RedisBackend stores each queue as a set of Redis structures:
//
//	{p}:queues                 SET of queue names
//	{p}:seq                    global enqueue sequence counter
//	{p}:{q}:jobs               HASH  job id -> record JSON
//	{p}:{q}:waiting            ZSET  job id, score priority*2^31 + seq
//	{p}:{q}:delayed            ZSET  job id, score ScheduledAt unix
//	{p}:{q}:active             ZSET  job id, score lock expiry unix
//	{p}:{q}:completed|failed   ZSET  record JSON, score FinishedAt unix
//	{p}:{q}:paused             flag key
//	{p}:schedules              HASH  schedule id -> schedule JSON
//
// Claims and terminal transitions run as Lua scripts keyed by job id, so
// concurrent workers and multiple manager processes sharing the store never
// double-process a record.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, &errors.ConfigurationError{Field: "redis_url", Message: err.Error()}
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			Username: cfg.Username,
			DB:       cfg.DB,
		}
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.ConnMaxIdleTime > 0 {
		opts.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	client := redis.NewClient(opts)

	pingTimeout := cfg.PingTimeout
	if pingTimeout == 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, &errors.BackendConnectionError{Backend: "Redis", Err: err}
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "jobqueue"
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (r *RedisBackend) queuesKey() string    { return r.prefix + ":queues" }
func (r *RedisBackend) seqKey() string       { return r.prefix + ":seq" }
func (r *RedisBackend) schedulesKey() string { return r.prefix + ":schedules" }

func (r *RedisBackend) jobsKey(q string) string    { return fmt.Sprintf("%s:%s:jobs", r.prefix, q) }
func (r *RedisBackend) waitingKey(q string) string { return fmt.Sprintf("%s:%s:waiting", r.prefix, q) }
func (r *RedisBackend) delayedKey(q string) string { return fmt.Sprintf("%s:%s:delayed", r.prefix, q) }
func (r *RedisBackend) activeKey(q string) string  { return fmt.Sprintf("%s:%s:active", r.prefix, q) }
func (r *RedisBackend) pausedKey(q string) string  { return fmt.Sprintf("%s:%s:paused", r.prefix, q) }

func (r *RedisBackend) historyKey(q string, state job.State) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, q, state)
}

// waitingScore ranks waiting records: lower priority value first, enqueue
// order within a priority. The 2^40 multiplier gives the sequence counter
// room for a trillion enqueues before it could bleed into the next priority
// bucket; priorities within +/-4096 keep the combined score inside
// float64's exact integer range.
func waitingScore(priority int, seq int64) float64 {
	return float64(priority)*float64(1<<40) + float64(seq)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func (r *RedisBackend) Enqueue(ctx context.Context, rec *job.Record) error {
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return &errors.BackendOperationError{Operation: "Enqueue", Err: err}
	}
	rec.Seq = seq

	data, err := json.Marshal(rec)
	if err != nil {
		return &errors.BackendOperationError{Operation: "Enqueue", Err: err}
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.queuesKey(), rec.Queue)
	pipe.HSet(ctx, r.jobsKey(rec.Queue), rec.ID, data)
	if rec.State == job.StateDelayed {
		pipe.ZAdd(ctx, r.delayedKey(rec.Queue), redis.Z{
			Score:  unixSeconds(rec.ScheduledAt),
			Member: rec.ID,
		})
	} else {
		pipe.ZAdd(ctx, r.waitingKey(rec.Queue), redis.Z{
			Score:  waitingScore(rec.Priority, rec.Seq),
			Member: rec.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &errors.BackendOperationError{Operation: "Enqueue", Err: err}
	}
	return nil
}

// dequeueCmd pops the best-ranked waiting id and registers the processing
// lock. Membership in the active set is the claim; the record JSON is never
// rewritten by Lua (cjson mangles raw payloads and large durations), the
// claim owner rewrites it right after.
var dequeueCmd = redis.NewScript(`
	local waitingKey = KEYS[1]
	local activeKey = KEYS[2]
	local jobsKey = KEYS[3]
	local pausedKey = KEYS[4]
	local lockExpiry = ARGV[1]

	if redis.call("EXISTS", pausedKey) == 1 then
		return nil
	end

	local popped = redis.call("ZPOPMIN", waitingKey)
	if #popped == 0 then
		return nil
	end

	local id = popped[1]
	local data = redis.call("HGET", jobsKey, id)
	if not data then
		return nil
	end

	redis.call("ZADD", activeKey, lockExpiry, id)
	return data
`)

func (r *RedisBackend) Dequeue(ctx context.Context, queue string, lockTTL time.Duration) (*job.Record, error) {
	now := time.Now()
	res, err := dequeueCmd.Run(ctx, r.client,
		[]string{r.waitingKey(queue), r.activeKey(queue), r.jobsKey(queue), r.pausedKey(queue)},
		unixSeconds(now.Add(lockTTL))).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, &errors.BackendOperationError{Operation: "Dequeue", Err: err}
	}

	data, ok := res.(string)
	if !ok {
		return nil, nil
	}

	var rec job.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, &errors.BackendOperationError{Operation: "Dequeue", Err: err}
	}

	rec.State = job.StateActive
	rec.AttemptsMade++
	processedAt := now
	rec.ProcessedAt = &processedAt
	if err := r.updateRecord(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// updateRecord rewrites the stored JSON of a record the caller owns.
func (r *RedisBackend) updateRecord(ctx context.Context, rec *job.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &errors.BackendOperationError{Operation: "UpdateRecord", Err: err}
	}
	if err := r.client.HSet(ctx, r.jobsKey(rec.Queue), rec.ID, data).Err(); err != nil {
		return &errors.BackendOperationError{Operation: "UpdateRecord", Err: err}
	}
	return nil
}

var heartbeatCmd = redis.NewScript(`
	if redis.call("ZSCORE", KEYS[1], ARGV[2]) then
		redis.call("ZADD", KEYS[1], "XX", ARGV[1], ARGV[2])
		return 1
	end
	return 0
`)

func (r *RedisBackend) Heartbeat(ctx context.Context, queue, jobID string, lockTTL time.Duration) error {
	res, err := heartbeatCmd.Run(ctx, r.client,
		[]string{r.activeKey(queue)},
		unixSeconds(time.Now().Add(lockTTL)), jobID).Result()
	if err != nil {
		return &errors.BackendOperationError{Operation: "Heartbeat", Err: err}
	}
	if res.(int64) == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

// finishCmd moves an owned active record into a bounded history collection
// and trims it by age and count in the same atomic step.
var finishCmd = redis.NewScript(`
	local activeKey = KEYS[1]
	local jobsKey = KEYS[2]
	local historyKey = KEYS[3]
	local id = ARGV[1]
	local data = ARGV[2]
	local nowSecs = tonumber(ARGV[3])
	local maxAgeSecs = tonumber(ARGV[4])
	local maxCount = tonumber(ARGV[5])

	if redis.call("ZREM", activeKey, id) == 0 then
		return 0
	end
	redis.call("HDEL", jobsKey, id)
	redis.call("ZADD", historyKey, nowSecs, data)
	if maxAgeSecs > 0 then
		redis.call("ZREMRANGEBYSCORE", historyKey, "-inf", nowSecs - maxAgeSecs)
	end
	if maxCount > 0 then
		redis.call("ZREMRANGEBYRANK", historyKey, 0, -(maxCount + 1))
	end
	return 1
`)

func (r *RedisBackend) finish(ctx context.Context, rec *job.Record, state job.State, retention job.Retention, op string) error {
	now := time.Now()
	rec.State = state
	rec.FinishedAt = &now

	data, err := json.Marshal(rec)
	if err != nil {
		return &errors.BackendOperationError{Operation: op, Err: err}
	}

	res, err := finishCmd.Run(ctx, r.client,
		[]string{r.activeKey(rec.Queue), r.jobsKey(rec.Queue), r.historyKey(rec.Queue, state)},
		rec.ID, data, unixSeconds(now), retention.MaxAge.Seconds(), retention.MaxCount).Result()
	if err != nil {
		return &errors.BackendOperationError{Operation: op, Err: err}
	}
	if res.(int64) == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

func (r *RedisBackend) Complete(ctx context.Context, rec *job.Record, result json.RawMessage, retention job.Retention) error {
	rec.Result = result
	return r.finish(ctx, rec, job.StateCompleted, retention, "Complete")
}

func (r *RedisBackend) Fail(ctx context.Context, rec *job.Record, reason string, retention job.Retention) error {
	rec.FailureReason = reason
	return r.finish(ctx, rec, job.StateFailed, retention, "Fail")
}

var delayCmd = redis.NewScript(`
	local activeKey = KEYS[1]
	local delayedKey = KEYS[2]
	local jobsKey = KEYS[3]
	local id = ARGV[1]
	local data = ARGV[2]
	local runAtSecs = ARGV[3]

	if redis.call("ZREM", activeKey, id) == 0 then
		return 0
	end
	redis.call("HSET", jobsKey, id, data)
	redis.call("ZADD", delayedKey, runAtSecs, id)
	return 1
`)

func (r *RedisBackend) Delay(ctx context.Context, rec *job.Record, runAt time.Time) error {
	rec.State = job.StateDelayed
	rec.ScheduledAt = runAt

	data, err := json.Marshal(rec)
	if err != nil {
		return &errors.BackendOperationError{Operation: "Delay", Err: err}
	}

	res, err := delayCmd.Run(ctx, r.client,
		[]string{r.activeKey(rec.Queue), r.delayedKey(rec.Queue), r.jobsKey(rec.Queue)},
		rec.ID, data, unixSeconds(runAt)).Result()
	if err != nil {
		return &errors.BackendOperationError{Operation: "Delay", Err: err}
	}
	if res.(int64) == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

// setProgressCmd rewrites an owned record only while its lock is held.
var setProgressCmd = redis.NewScript(`
	local activeKey = KEYS[1]
	local jobsKey = KEYS[2]
	local id = ARGV[1]
	local data = ARGV[2]

	if not redis.call("ZSCORE", activeKey, id) then
		return 0
	end
	redis.call("HSET", jobsKey, id, data)
	return 1
`)

func (r *RedisBackend) SetProgress(ctx context.Context, rec *job.Record, progress int) error {
	cp := *rec
	cp.Progress = progress
	data, err := json.Marshal(&cp)
	if err != nil {
		return &errors.BackendOperationError{Operation: "SetProgress", Err: err}
	}

	res, err := setProgressCmd.Run(ctx, r.client,
		[]string{r.activeKey(rec.Queue), r.jobsKey(rec.Queue)},
		rec.ID, data).Result()
	if err != nil {
		return &errors.BackendOperationError{Operation: "SetProgress", Err: err}
	}
	if res.(int64) == 0 {
		return errors.ErrJobNotFound
	}
	return nil
}

// promoteCmd moves due delayed ids back to waiting, restoring each record's
// priority rank from its stored JSON. The JSON itself is read, never
// rewritten: collection membership is authoritative for where a record
// stands, and the next claim owner refreshes the stored state.
var promoteCmd = redis.NewScript(`
	local delayedKey = KEYS[1]
	local waitingKey = KEYS[2]
	local jobsKey = KEYS[3]
	local nowSecs = ARGV[1]
	local limit = ARGV[2]

	local due = redis.call("ZRANGEBYSCORE", delayedKey, "-inf", nowSecs, "LIMIT", 0, limit)
	local moved = 0
	for _, id in ipairs(due) do
		local data = redis.call("HGET", jobsKey, id)
		if data then
			local rec = cjson.decode(data)
			local score = rec.priority * 1099511627776 + rec.seq
			redis.call("ZADD", waitingKey, score, id)
			moved = moved + 1
		end
		redis.call("ZREM", delayedKey, id)
	end
	return moved
`)

func (r *RedisBackend) PromoteDelayed(ctx context.Context, queue string, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := promoteCmd.Run(ctx, r.client,
		[]string{r.delayedKey(queue), r.waitingKey(queue), r.jobsKey(queue)},
		unixSeconds(time.Now()), limit).Result()
	if err != nil {
		return 0, &errors.BackendOperationError{Operation: "PromoteDelayed", Err: err}
	}
	return int(res.(int64)), nil
}

func (r *RedisBackend) ExpiredActive(ctx context.Context, queue string) ([]*job.Record, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.activeKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(unixSeconds(time.Now()), 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, &errors.BackendOperationError{Operation: "ExpiredActive", Err: err}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := r.client.HMGet(ctx, r.jobsKey(queue), ids...).Result()
	if err != nil {
		return nil, &errors.BackendOperationError{Operation: "ExpiredActive", Err: err}
	}

	records := make([]*job.Record, 0, len(raw))
	for _, v := range raw {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var rec job.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

var requeueCmd = redis.NewScript(`
	local activeKey = KEYS[1]
	local waitingKey = KEYS[2]
	local jobsKey = KEYS[3]
	local id = ARGV[1]
	local data = ARGV[2]
	local score = ARGV[3]

	if redis.call("ZREM", activeKey, id) == 0 then
		return 0
	end
	redis.call("HSET", jobsKey, id, data)
	redis.call("ZADD", waitingKey, score, id)
	return 1
`)

func (r *RedisBackend) RequeueStalled(ctx context.Context, rec *job.Record) (bool, error) {
	rec.State = job.StateWaiting

	data, err := json.Marshal(rec)
	if err != nil {
		return false, &errors.BackendOperationError{Operation: "RequeueStalled", Err: err}
	}

	res, err := requeueCmd.Run(ctx, r.client,
		[]string{r.activeKey(rec.Queue), r.waitingKey(rec.Queue), r.jobsKey(rec.Queue)},
		rec.ID, data, waitingScore(rec.Priority, rec.Seq)).Result()
	if err != nil {
		return false, &errors.BackendOperationError{Operation: "RequeueStalled", Err: err}
	}
	return res.(int64) == 1, nil
}

// DrainActive returns every active record to waiting with the interrupted
// attempt handed back. Each move reuses the per-id requeue CAS, so a record
// a concurrent reaper already took over is skipped.
func (r *RedisBackend) DrainActive(ctx context.Context, queue string) (int, error) {
	ids, err := r.client.ZRange(ctx, r.activeKey(queue), 0, -1).Result()
	if err != nil {
		return 0, &errors.BackendOperationError{Operation: "DrainActive", Err: err}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	raw, err := r.client.HMGet(ctx, r.jobsKey(queue), ids...).Result()
	if err != nil {
		return 0, &errors.BackendOperationError{Operation: "DrainActive", Err: err}
	}

	moved := 0
	for i, v := range raw {
		data, ok := v.(string)
		if !ok {
			r.client.ZRem(ctx, r.activeKey(queue), ids[i])
			continue
		}
		var rec job.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		if rec.AttemptsMade > 0 {
			rec.AttemptsMade--
		}
		requeued, err := r.RequeueStalled(ctx, &rec)
		if err != nil {
			return moved, err
		}
		if requeued {
			moved++
		}
	}
	return moved, nil
}

func (r *RedisBackend) GetJob(ctx context.Context, queue, jobID string) (*job.Record, error) {
	data, err := r.client.HGet(ctx, r.jobsKey(queue), jobID).Result()
	if err == redis.Nil {
		return nil, &errors.JobNotFoundError{JobID: jobID}
	}
	if err != nil {
		return nil, &errors.BackendOperationError{Operation: "GetJob", Err: err}
	}

	var rec job.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, &errors.BackendOperationError{Operation: "GetJob", Err: err}
	}
	return &rec, nil
}

func (r *RedisBackend) ListHistory(ctx context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	// Newest first.
	raw, err := r.client.ZRevRange(ctx, r.historyKey(queue, state),
		int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, &errors.BackendOperationError{Operation: "ListHistory", Err: err}
	}

	records := make([]*job.Record, 0, len(raw))
	for _, data := range raw {
		var rec job.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (r *RedisBackend) EnsureQueue(ctx context.Context, queue string) error {
	if err := r.client.SAdd(ctx, r.queuesKey(), queue).Err(); err != nil {
		return &errors.BackendOperationError{Operation: "EnsureQueue", Err: err}
	}
	return nil
}

func (r *RedisBackend) Queues(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.queuesKey()).Result()
	if err != nil {
		return nil, &errors.BackendOperationError{Operation: "Queues", Err: err}
	}
	return names, nil
}

func (r *RedisBackend) Pause(ctx context.Context, queue string) error {
	if err := r.client.Set(ctx, r.pausedKey(queue), "1", 0).Err(); err != nil {
		return &errors.BackendOperationError{Operation: "Pause", Err: err}
	}
	return nil
}

func (r *RedisBackend) Resume(ctx context.Context, queue string) error {
	if err := r.client.Del(ctx, r.pausedKey(queue)).Err(); err != nil {
		return &errors.BackendOperationError{Operation: "Resume", Err: err}
	}
	return nil
}

func (r *RedisBackend) IsPaused(ctx context.Context, queue string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.pausedKey(queue)).Result()
	if err != nil {
		return false, &errors.BackendOperationError{Operation: "IsPaused", Err: err}
	}
	return exists > 0, nil
}

func (r *RedisBackend) Stats(ctx context.Context, queue string) (*QueueStats, error) {
	pipe := r.client.Pipeline()
	waitingCmd := pipe.ZCard(ctx, r.waitingKey(queue))
	activeCmd := pipe.ZCard(ctx, r.activeKey(queue))
	delayedCmd := pipe.ZCard(ctx, r.delayedKey(queue))
	completedCmd := pipe.ZCard(ctx, r.historyKey(queue, job.StateCompleted))
	failedCmd := pipe.ZCard(ctx, r.historyKey(queue, job.StateFailed))
	pausedCmd := pipe.Exists(ctx, r.pausedKey(queue))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, &errors.BackendOperationError{Operation: "Stats", Err: err}
	}

	return &QueueStats{
		Waiting:   waitingCmd.Val(),
		Active:    activeCmd.Val(),
		Delayed:   delayedCmd.Val(),
		Completed: completedCmd.Val(),
		Failed:    failedCmd.Val(),
		Paused:    pausedCmd.Val() > 0,
	}, nil
}

func (r *RedisBackend) UpsertSchedule(ctx context.Context, s *Schedule) error {
	s.NextRunSecs = unixSeconds(s.NextRunAt)
	data, err := json.Marshal(s)
	if err != nil {
		return &errors.BackendOperationError{Operation: "UpsertSchedule", Err: err}
	}
	if err := r.client.HSet(ctx, r.schedulesKey(), s.ID, data).Err(); err != nil {
		return &errors.BackendOperationError{Operation: "UpsertSchedule", Err: err}
	}
	return nil
}

func (r *RedisBackend) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	raw, err := r.client.HVals(ctx, r.schedulesKey()).Result()
	if err != nil {
		return nil, &errors.BackendOperationError{Operation: "ListSchedules", Err: err}
	}

	schedules := make([]*Schedule, 0, len(raw))
	for _, data := range raw {
		var s Schedule
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			continue
		}
		schedules = append(schedules, &s)
	}
	return schedules, nil
}

// claimScheduleCmd swaps in the advanced schedule if and only if the stored
// one is still due, so exactly one manager process fires each trigger tick.
// The replacement JSON is marshaled by the caller; Lua only reads the due
// marker.
var claimScheduleCmd = redis.NewScript(`
	local schedulesKey = KEYS[1]
	local id = ARGV[1]
	local dueSecs = tonumber(ARGV[2])
	local advanced = ARGV[3]

	local data = redis.call("HGET", schedulesKey, id)
	if not data then
		return -1
	end

	local sched = cjson.decode(data)
	local nextSecs = tonumber(sched.next_run_secs)
	if nextSecs == nil or nextSecs > dueSecs then
		return 0
	end

	redis.call("HSET", schedulesKey, id, advanced)
	return 1
`)

func (r *RedisBackend) ClaimSchedule(ctx context.Context, s *Schedule, due, next time.Time) (bool, error) {
	cp := *s
	cp.NextRunAt = next
	cp.NextRunSecs = unixSeconds(next)
	fired := due
	cp.LastRunAt = &fired

	advanced, err := json.Marshal(&cp)
	if err != nil {
		return false, &errors.BackendOperationError{Operation: "ClaimSchedule", Err: err}
	}

	res, err := claimScheduleCmd.Run(ctx, r.client,
		[]string{r.schedulesKey()},
		s.ID,
		unixSeconds(due),
		advanced).Result()
	if err != nil {
		return false, &errors.BackendOperationError{Operation: "ClaimSchedule", Err: err}
	}
	switch res.(int64) {
	case -1:
		return false, errors.ErrScheduleNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func (r *RedisBackend) DeleteSchedule(ctx context.Context, scheduleID string) error {
	removed, err := r.client.HDel(ctx, r.schedulesKey(), scheduleID).Result()
	if err != nil {
		return &errors.BackendOperationError{Operation: "DeleteSchedule", Err: err}
	}
	if removed == 0 {
		return errors.ErrScheduleNotFound
	}
	return nil
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &errors.BackendConnectionError{Backend: "Redis", Err: err}
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

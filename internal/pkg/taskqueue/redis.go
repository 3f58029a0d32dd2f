package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redisc "github.com/forumhub/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

const (
	keyQueue        = redisc.KeyPrefix + "tasks:queue"
	dequeuePollWait = 5 * time.Second
)

// Redis is a Queue shared by all server processes. Tasks are JSON documents
// in a Redis list; producers LPUSH and consumers BRPOP.
type Redis struct {
	rc       *redisc.Client
	pollWait time.Duration
}

func NewRedis(rc *redisc.Client) *Redis {
	return &Redis{rc: rc, pollWait: dequeuePollWait}
}

// Len reports the backlog, or -1 when Redis cannot be asked.
func (r *Redis) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := r.rc.Raw().LLen(ctx, keyQueue).Result()
	if err != nil {
		return -1
	}
	return int(n)
}

func (r *Redis) Enqueue(ctx context.Context, taskType string, payload interface{}) (*Task, error) {
	task, err := newTask(taskType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	if err := r.rc.Raw().LPush(ctx, keyQueue, data).Err(); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *Redis) Dequeue(ctx context.Context) (*Task, error) {
	for {
		res, err := r.rc.Raw().BRPop(ctx, r.pollWait, keyQueue).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		// res[0] is the list name, res[1] the value.
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return nil, err
		}
		return &task, nil
	}
}

package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrFull is returned by Memory.Enqueue when the buffer is exhausted.
var ErrFull = errors.New("task queue is full")

// Task is a unit of background work.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the payload into v.
func (t *Task) Decode(v interface{}) error {
	return json.Unmarshal(t.Payload, v)
}

// Queue is a FIFO of tasks. Enqueue never blocks on consumers.
type Queue interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) (*Task, error)
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*Task, error)
}

func newTask(taskType string, payload interface{}) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// Memory is an in-process Queue backed by a buffered channel.
type Memory struct {
	ch chan *Task
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{ch: make(chan *Task, size)}
}

func (m *Memory) Enqueue(ctx context.Context, taskType string, payload interface{}) (*Task, error) {
	task, err := newTask(taskType, payload)
	if err != nil {
		return nil, err
	}
	select {
	case m.ch <- task:
		return task, nil
	default:
		return nil, ErrFull
	}
}

func (m *Memory) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case task := <-m.ch:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of queued tasks.
func (m *Memory) Len() int { return len(m.ch) }

package sim

import "sync"

const (
	taskBufferOccupancyMetricKey = "sim_task_buffer_occupancy"
	taskBufferOverflowMetricKey  = "sim_task_buffer_overflow_total"
)

// TaskBuffer stores handed-off tasks in a fixed-size ring. Tasks that do not
// fit are spilled to an unbounded list drained after the ring. It is safe for
// concurrent producers and a single consumer.
type TaskBuffer struct {
	mu      sync.Mutex
	data    []Task
	head    int
	tail    int
	count   int
	spilled []Task
	metrics telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewTaskBuffer constructs a ring buffer with the provided capacity.
func NewTaskBuffer(capacity int, metrics telemetryMetrics) *TaskBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &TaskBuffer{
		data:    make([]Task, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of tasks the buffer can hold.
func (b *TaskBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Push stages a task, returning false if the buffer is full.
func (b *TaskBuffer) Push(task Task) bool {
	if b == nil || task == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(taskBufferOverflowMetricKey, 1)
		}
		return false
	}
	b.data[b.tail] = task
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	b.storeOccupancyLocked()
	return true
}

// Spill stages task outside the ring. Callers use it when Push reports a
// full ring and the task must not be lost.
func (b *TaskBuffer) Spill(task Task) {
	if b == nil || task == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spilled = append(b.spilled, task)
	b.storeOccupancyLocked()
}

// Drain returns all staged tasks in FIFO order and clears the buffer.
// Spilled tasks follow the ring: the ring was full when they arrived.
func (b *TaskBuffer) Drain() []Task {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 && len(b.spilled) == 0 {
		return nil
	}
	tasks := make([]Task, b.count, b.count+len(b.spilled))
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		tasks[i] = b.data[idx]
		b.data[idx] = nil
	}
	tasks = append(tasks, b.spilled...)
	b.spilled = nil
	b.head = 0
	b.tail = 0
	b.count = 0
	b.storeOccupancyLocked()
	return tasks
}

// Len reports the number of staged tasks.
func (b *TaskBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count + len(b.spilled)
}

func (b *TaskBuffer) storeOccupancyLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(taskBufferOccupancyMetricKey, uint64(b.count+len(b.spilled)))
}

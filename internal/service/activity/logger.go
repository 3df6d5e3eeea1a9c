package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/rms/internal/domain"
	"github.com/vladislavdragonenkov/rms/internal/metrics"
)

const defaultQueueSize = 256

// Logger — асинхронный журнал аудита. Append не блокирует вызывающего:
// запись уходит в канал, фоновая горутина сливает её в хранилище.
// Ошибка записи логируется и считается в метриках, но не влияет на
// операцию, которая её породила.
type Logger struct {
	repo    domain.ActivityRepository
	metrics *metrics.InventoryMetrics
	logger  *log.Entry

	queue chan domain.ActivityEntry

	// mu сериализует Append с Close: запись в закрытый канал — panic,
	// поэтому закрытие ждёт завершения всех текущих Append.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// LoggerOptions задаёт параметры асинхронного журнала.
type LoggerOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.InventoryMetrics
	QueueSize int
}

// Option настраивает Logger.
type Option func(*LoggerOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *LoggerOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт сборщик метрик.
func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(opts *LoggerOptions) {
		opts.Metrics = m
	}
}

// WithQueueSize задаёт размер буфера очереди.
func WithQueueSize(size int) Option {
	return func(opts *LoggerOptions) {
		opts.QueueSize = size
	}
}

// NewLogger создаёт асинхронный журнал аудита и запускает фоновую горутину.
func NewLogger(repo domain.ActivityRepository, options ...Option) *Logger {
	opts := LoggerOptions{QueueSize: defaultQueueSize}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "activity-logger")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	l := &Logger{
		repo:    repo,
		metrics: opts.Metrics,
		logger:  logger,
		queue:   make(chan domain.ActivityEntry, opts.QueueSize),
		done:    make(chan struct{}),
	}

	go l.drain()

	return l
}

// Append ставит запись аудита в очередь. Никогда не блокирует: при
// переполненной очереди запись отбрасывается с warning-ом. Вызов после
// Close безопасен и так же отбрасывает запись.
func (l *Logger) Append(userID, action, details string) {
	entry := domain.ActivityEntry{
		ID:       uuid.NewString(),
		UserID:   userID,
		Action:   action,
		Details:  details,
		Occurred: time.Now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.dropEntry(userID, action, "activity logger is closed, entry dropped")
		return
	}

	select {
	case l.queue <- entry:
	default:
		l.dropEntry(userID, action, "activity queue is full, entry dropped")
	}
}

func (l *Logger) dropEntry(userID, action, reason string) {
	l.logger.WithFields(log.Fields{
		"user_id": userID,
		"action":  action,
	}).Warn(reason)
	if l.metrics != nil {
		l.metrics.RecordActivityFailure()
	}
}

// Close останавливает фоновую горутину, дождавшись записи всего буфера.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		close(l.queue)
		<-l.done
	})
}

func (l *Logger) drain() {
	defer close(l.done)

	for entry := range l.queue {
		if err := l.repo.Append(entry); err != nil {
			l.logger.WithError(err).WithFields(log.Fields{
				"user_id": entry.UserID,
				"action":  entry.Action,
			}).Error("failed to append activity entry")
			if l.metrics != nil {
				l.metrics.RecordActivityFailure()
			}
			continue
		}
		if l.metrics != nil {
			l.metrics.RecordActivityWrite()
		}
	}
}

var _ domain.ActivityLogger = (*Logger)(nil)

package audit

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

// Record is one row of the messages table.
type Record struct {
	Facility  int       `gorm:"column:facility"`
	Severity  int       `gorm:"column:severity"`
	Timestamp time.Time `gorm:"column:timestamp"`
	Hostname  string    `gorm:"column:hostname"`
	Appname   string    `gorm:"column:appname"`
	Procid    string    `gorm:"column:procid"`
	Msgid     string    `gorm:"column:msgid"`
	Sdata     string    `gorm:"column:sdata;type:jsonb"`
	Message   string    `gorm:"column:message"`
}

func (Record) TableName() string { return "messages" }

// Store persists audit events through the application's connection pool.
type Store struct {
	db       *gorm.DB
	hostname string
	procid   string
	now      func() time.Time
}

// NewStore returns a Store writing through db.
func NewStore(db *gorm.DB) *Store {
	hostname, _ := os.Hostname()
	return &Store{
		db:       db.Session(&gorm.Session{SkipDefaultTransaction: true}),
		hostname: hostname,
		procid:   strconv.Itoa(os.Getpid()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record converts event into the row Save writes.
func (s *Store) Record(event Event) (*Record, error) {
	sdata, err := json.Marshal(event.StructuredData())
	if err != nil {
		return nil, err
	}
	return &Record{
		Facility:  event.Facility(),
		Severity:  int(event.Severity()),
		Timestamp: s.now(),
		Hostname:  s.hostname,
		Appname:   appName,
		Procid:    s.procid,
		Msgid:     event.MessageID(),
		Sdata:     string(sdata),
		Message:   event.Message(),
	}, nil
}

// Save persists an audit event.
func (s *Store) Save(ctx context.Context, event Event) error {
	rec, err := s.Record(event)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

var defaultStore atomic.Pointer[Store]

// Use makes Log persist events to s as well. A nil s stops persisting.
func Use(s *Store) {
	defaultStore.Store(s)
}

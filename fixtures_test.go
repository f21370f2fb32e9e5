package xmap

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status int

const (
	StatusActive Status = iota + 1
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func init() { RegisterEnum(StatusActive, StatusClosed) }

// Level prints but cannot be parsed back from text.
type Level uint8

func (l Level) String() string { return fmt.Sprintf("L%d", uint8(l)) }

// Color parses itself from text.
type Color int

const (
	Red Color = iota
	Green
)

func (c Color) MarshalText() ([]byte, error) {
	if c == Green {
		return []byte("green"), nil
	}
	return []byte("red"), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	switch string(b) {
	case "red":
		*c = Red
	case "green":
		*c = Green
	default:
		return fmt.Errorf("bad color %q", b)
	}
	return nil
}

type person struct {
	Id   int64
	Name string
}

type Audit struct {
	CreatedAt time.Time `db:"created_at"`
	CreatedBy *string   `db:"created_by"`
}

type Order struct {
	ID       uuid.UUID       `db:"id"`
	Customer string          `db:"customer,size=40"`
	Amount   decimal.Decimal `db:"amount,precision=18,scale=2"`
	State    Status          `db:"state,type=string"`
	Note     *string         `db:"note"`
	Total    int64           `db:"total,output"`
	Audit    `db:",inline"`
	Secret   string `db:"-"`
	internal int
}

type opaque struct {
	a int
	b string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMapper(opts ...Option) *Mapper {
	return NewMapper(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func strPtr(s string) *string { return &s }

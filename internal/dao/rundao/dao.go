// Package rundao persists an audit record per provisioning run.
package rundao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"
	"github.com/segmentio/ksuid"
)

// RunStatus represents the terminal state of a provisioning run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailed     RunStatus = "FAILED"
)

// ID represents a run id in format {command}:{ksuid}.
type ID string

func (id ID) String() string {
	return string(id)
}

// NewID constructs an ID from command and sort key.
func NewID(command, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", command, sk))
}

// ParseID parses a run ID into its command (pk) and ksuid (sk) components.
func ParseID(id ID) (command, sk string, err error) {
	parts := strings.Split(string(id), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid run ID format: %s, expected {command}:{ksuid}", id)
	}
	return parts[0], parts[1], nil
}

// NewSK returns a fresh time-ordered sort key.
func NewSK() string {
	return ksuid.New().String()
}

// Record represents one provisioning run in DynamoDB.
type Record struct {
	PK         string    `ddb:"hash" dynamodbav:"pk"`  // command name
	SK         string    `ddb:"range" dynamodbav:"sk"` // KSUID
	Status     RunStatus `dynamodbav:"status,omitempty"`
	Steps      []string  `dynamodbav:"steps,omitempty"` // "kind name outcome" per step
	ErrorMsg   *string   `dynamodbav:"error_msg,omitempty"`
	StartedAt  int64     `dynamodbav:"started_at,omitempty"`
	FinishedAt *int64    `dynamodbav:"finished_at,omitempty"`
}

// GetID returns the full run ID in format {command}:{ksuid}.
func (r *Record) GetID() ID {
	return NewID(r.PK, r.SK)
}

// GetID is the free-function form for use with slicex.
func GetID(r Record) ID {
	return NewID(r.PK, r.SK)
}

// FinishInput carries the terminal state of a run.
type FinishInput struct {
	Command  string
	SK       string
	Status   RunStatus
	Steps    []string
	ErrorMsg *string
}

// DAO provides data access operations for run records.
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance.
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create writes a new run record with status IN_PROGRESS and returns it.
func (d *DAO) Create(ctx context.Context, command string) (Record, error) {
	record := Record{
		PK:        command,
		SK:        NewSK(),
		Status:    RunStatusInProgress,
		StartedAt: time.Now().Unix(),
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to create run record: %w", err)
	}
	return record, nil
}

// Finish records the terminal status, step outcomes and completion time.
func (d *DAO) Finish(ctx context.Context, input FinishInput) error {
	now := time.Now().Unix()

	update := d.table.Update(input.Command).
		Range(input.SK).
		Set("#Status = ?", string(input.Status)).
		Set("#FinishedAt = ?", now)

	if len(input.Steps) > 0 {
		update = update.Set("#Steps = ?", input.Steps)
	}
	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	if err := update.RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to finish run record: %w", err)
	}
	return nil
}

// Find retrieves a run record by ID.
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	command, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record
	err = d.table.Get(command).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		return Record{}, fmt.Errorf("failed to find run record: %w", err)
	}
	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("run record not found: %s", id)
	}
	return record, nil
}

// Query returns all runs recorded for a command.
func (d *DAO) Query(ctx context.Context, command string) ([]Record, error) {
	var records []Record
	err := d.table.Query("#PK = ?", command).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return records, nil
}

// QueryIDs returns just the ids of the runs recorded for a command.
func (d *DAO) QueryIDs(ctx context.Context, command string) ([]ID, error) {
	records, err := d.Query(ctx, command)
	if err != nil {
		return nil, err
	}
	return slicex.Map(records, GetID), nil
}

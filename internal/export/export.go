// Package export renders ledger data as CSV for the admin console.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoUploader = errors.New("export storage is not configured")

type Source interface {
	ListAllTransactions(ctx context.Context, limit int) ([]ledger.TransactionRow, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

type Exporter struct {
	src Source
	up  Uploader
	now func() time.Time
}

// NewExporter accepts a nil uploader; Publish then reports ErrNoUploader.
func NewExporter(src Source, up Uploader, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{src: src, up: up, now: now}
}

func (e *Exporter) CanPublish() bool { return e.up != nil }

var transactionHeader = []string{
	"id", "user_id", "phone", "type", "amount", "settlement", "status",
	"description", "reference", "account_holder", "account_number", "ifsc_code", "created_at",
}

// TransactionsCSV writes every transaction, newest first.
func (e *Exporter) TransactionsCSV(ctx context.Context, w io.Writer) error {
	rows, err := e.src.ListAllTransactions(ctx, -1)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return err
	}
	for _, r := range rows {
		var holder, number, ifsc string
		if r.BankDetails != nil {
			holder, number, ifsc = r.BankDetails.AccountHolder, r.BankDetails.AccountNumber, r.BankDetails.IFSCCode
		}
		rec := []string{
			strconv.FormatUint(r.ID, 10),
			strconv.FormatUint(r.UserID, 10),
			r.Phone,
			string(r.Type),
			r.Amount.StringFixed(2),
			string(r.Settlement),
			r.Status,
			r.Description,
			r.Reference,
			holder,
			number,
			ifsc,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Publish uploads a fresh transactions export and returns a download link.
func (e *Exporter) Publish(ctx context.Context) (url, key string, err error) {
	if e.up == nil {
		return "", "", ErrNoUploader
	}
	var buf bytes.Buffer
	if err := e.TransactionsCSV(ctx, &buf); err != nil {
		return "", "", err
	}
	key = fmt.Sprintf("exports/transactions-%s-%s.csv",
		e.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	url, err = e.up.Upload(ctx, key, bytes.NewReader(buf.Bytes()), "text/csv")
	if err != nil {
		return "", "", err
	}
	logger.Log.Info("transactions exported", zap.String("key", key), zap.Int("bytes", buf.Len()))
	return url, key, nil
}

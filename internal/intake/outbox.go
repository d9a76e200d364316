package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/extract"
	"github.com/klinikwerk/praxisd/internal/pseudonym"
)

// OutboxResponder writes confirmation invitations to a directory for a
// downstream mailer to pick up. File names carry the slot date and the
// pseudonymized recipient, never the address itself.
type OutboxResponder struct {
	dir    string
	logger *zap.Logger
}

// NewOutboxResponder returns a responder writing into dir, creating it
// if needed.
func NewOutboxResponder(dir string, logger *zap.Logger) (*OutboxResponder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating outbox directory: %w", err)
	}
	return &OutboxResponder{dir: dir, logger: logger}, nil
}

// SendConfirmation writes the invitation as one .ics file.
func (o *OutboxResponder) SendConfirmation(ctx context.Context, req extract.AppointmentRequest, invitation string) error {
	name := fmt.Sprintf("%s_%s.ics",
		req.RequestedDate.Format("20060102"),
		pseudonym.Short(req.ContactEmail))
	path := filepath.Join(o.dir, name)

	if err := os.WriteFile(path, []byte(invitation), 0o600); err != nil {
		return fmt.Errorf("writing invitation: %w", err)
	}
	o.logger.Info("invitation queued", zap.String("file", name))
	return nil
}

// Dir returns the outbox directory.
func (o *OutboxResponder) Dir() string {
	return o.dir
}

package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/extract"
)

// doneDirName holds acknowledged spool files, inside the spool
// directory itself so a single mount covers both.
const doneDirName = "done"

// SpoolSource reads messages from a file-drop directory. Each file is
// one message:
//
//	From: sender <addr@example.org>   (optional)
//	Subject: Terminanfrage            (optional prefix on first line)
//
//	body text ...
//
// Without headers the first line is the subject and the rest, after a
// blank line, is the body. Acknowledged files move to done/.
type SpoolSource struct {
	dir    string
	logger *zap.Logger
}

// NewSpoolSource returns a source over dir, creating it and its done
// subdirectory if needed.
func NewSpoolSource(dir string, logger *zap.Logger) (*SpoolSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(dir, doneDirName), 0o700); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &SpoolSource{dir: dir, logger: logger}, nil
}

// Fetch returns one Message per regular file in the spool directory,
// in name order. Unreadable files are logged and left in place.
func (s *SpoolSource) Fetch(ctx context.Context) ([]extract.Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var messages []extract.Message
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		content, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("unreadable spool file", zap.String("file", name), zap.Error(err))
			continue
		}
		msg := parseSpoolFile(name, string(content))
		messages = append(messages, msg)
	}
	return messages, nil
}

// MarkProcessed moves the message file into the done directory.
func (s *SpoolSource) MarkProcessed(ctx context.Context, messageID string) error {
	// The id is a file name chosen by Fetch; reject anything that
	// could escape the spool directory.
	if messageID != filepath.Base(messageID) {
		return fmt.Errorf("invalid message id %q", messageID)
	}
	src := filepath.Join(s.dir, messageID)
	dst := filepath.Join(s.dir, doneDirName, messageID)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving spool file to done: %w", err)
	}
	return nil
}

// Watch emits a signal whenever a file lands in the spool directory.
// The channel closes when ctx is done or the watcher fails.
func (s *SpoolSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating spool watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching spool directory: %w", err)
	}

	signals := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
					continue
				}
				// Coalesce: a pending signal already covers this event.
				select {
				case signals <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("spool watcher error", zap.Error(err))
			}
		}
	}()
	return signals, nil
}

// Dir returns the spool directory.
func (s *SpoolSource) Dir() string {
	return s.dir
}

// parseSpoolFile splits a spool file into envelope, subject, and body.
func parseSpoolFile(name, content string) extract.Message {
	msg := extract.Message{ID: name}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	i := 0
headers:
	for i < len(lines) {
		line := lines[i]
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "from:"):
			msg.From = strings.TrimSpace(line[len("from:"):])
			i++
		case strings.HasPrefix(lower, "subject:"):
			msg.Subject = strings.TrimSpace(line[len("subject:"):])
			i++
		default:
			if msg.Subject == "" && strings.TrimSpace(line) != "" {
				// No Subject: header; the first content line is the
				// subject.
				msg.Subject = strings.TrimSpace(line)
				i++
			}
			break headers
		}
	}
	// Skip the separating blank lines.
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	msg.Body = strings.TrimSpace(strings.Join(lines[i:], "\n"))
	return msg
}

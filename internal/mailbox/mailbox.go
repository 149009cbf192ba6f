// Package mailbox implements the message-passing half of C8's IPC contract:
// per-task inboxes and a shared broadcast topic, both file-backed with
// atomic rename-on-read and per-reader dedup for broadcasts.
package mailbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/taskmesh/orchestrator/internal/fsatomic"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// Message is the envelope stored in an inbox or the broadcast topic.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"` // empty for broadcast
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// Box manages one project's mailbox tree under <root>/.orchestrator/mailbox.
type Box struct {
	root string
}

// New returns a Box rooted at <root>/.orchestrator/mailbox.
func New(root string) *Box {
	return &Box{root: filepath.Join(root, ".orchestrator", "mailbox")}
}

func (b *Box) inboxDir(to taskid.ID) string {
	return filepath.Join(b.root, to.String())
}

func (b *Box) broadcastDir() string {
	return filepath.Join(b.root, "broadcast")
}

// Send writes msg into recipient's personal inbox. A corrupt or unreadable
// recipient directory is not this call's concern; writes are independent
// per-file and never require listing the inbox first.
func (b *Box) Send(to taskid.ID, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	path := filepath.Join(b.inboxDir(to), fmt.Sprintf("msg-%s.json", msg.ID))
	return fsatomic.Write(path, data)
}

// Broadcast writes msg into the shared broadcast topic, readable by every
// task except the sender (see ReceiveBroadcast's self-suppression).
func (b *Box) Broadcast(msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	path := filepath.Join(b.broadcastDir(), fmt.Sprintf("msg-%s.json", msg.ID))
	return fsatomic.Write(path, data)
}

// Receive drains unread (non ".read.json") messages from to's personal
// inbox, marking each as read by an atomic rename rather than deleting it —
// so a crash between read and ack never silently loses a message. Corrupt
// message files are skipped and reported, never fatal to the drain.
func (b *Box) Receive(to taskid.ID) ([]Message, []error) {
	return drainDir(b.inboxDir(to), func(Message) bool { return true })
}

// ReceiveBroadcast drains broadcast messages not yet seen by self, marking
// them seen via a per-reader ".seen-by-<task-id>" sentinel file next to each
// message (so N readers can each independently track their own progress
// through the same shared topic) and suppressing the sender's own posts.
func (b *Box) ReceiveBroadcast(self taskid.ID) ([]Message, []error) {
	dir := b.broadcastDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("read broadcast dir: %w", err)}
	}

	var out []Message
	var errs []error
	names := sortedMessageFiles(entries)
	for _, name := range names {
		seenMarker := filepath.Join(dir, name+".seen-by-"+self.String())
		if _, err := os.Stat(seenMarker); err == nil {
			continue // already delivered to this reader
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue // file removed concurrently; not an error for this reader
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			errs = append(errs, fmt.Errorf("corrupt broadcast message %s: %w", name, err))
			_ = fsatomic.Write(seenMarker, []byte("corrupt"))
			continue
		}
		if msg.From == self.String() {
			_ = fsatomic.Write(seenMarker, []byte("self"))
			continue
		}
		out = append(out, msg)
		_ = fsatomic.Write(seenMarker, []byte("1"))
	}
	return out, errs
}

// drainDir reads every unread message in dir matching filter, marking each
// read via atomic rename to a ".read.json" sibling.
func drainDir(dir string, filter func(Message) bool) ([]Message, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("read inbox dir: %w", err)}
	}

	var out []Message
	var errs []error
	for _, name := range sortedMessageFiles(entries) {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			errs = append(errs, fmt.Errorf("corrupt message %s: %w", name, err))
			continue
		}
		if !filter(msg) {
			continue
		}
		out = append(out, msg)
		readPath := path[:len(path)-len(".json")] + ".read.json"
		if err := os.Rename(path, readPath); err != nil {
			errs = append(errs, fmt.Errorf("mark %s read: %w", name, err))
		}
	}
	return out, errs
}

// sortedMessageFiles returns unread "msg-*.json" entries (never "*.read.json"
// or "*.seen-by-*" sentinels) in a deterministic order.
func sortedMessageFiles(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < 9 || name[:4] != "msg-" {
			continue
		}
		if filepath.Ext(name) != ".json" {
			continue
		}
		if hasSuffix(name, ".read.json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

package queue

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestHandleMessageAppendsToOutbox(t *testing.T) {
    path := filepath.Join(t.TempDir(), "out", "notifications.log")
    body := `{"template":"booking_confirmed","recipient":"a@example.com","booking_id":7,` +
        `"data":{"start_time":"10:00","date":"2026-10-14"},"occurred_at":"2026-10-12T08:00:00Z"}`

    for i := 0; i < 2; i++ {
        if _, err := handleMessage(path, []byte(body)); err != nil {
            t.Fatalf("handle: %v", err)
        }
    }
    raw, err := os.ReadFile(path)
    if err != nil {
        t.Fatal(err)
    }
    lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
    if len(lines) != 2 {
        t.Fatalf("lines = %q", lines)
    }
    want := "[2026-10-12T08:00:00Z] booking_confirmed | booking_id=7 | to=a@example.com | date=2026-10-14 | start_time=10:00"
    if lines[0] != want {
        t.Fatalf("line = %q\nwant  %q", lines[0], want)
    }
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
    path := filepath.Join(t.TempDir(), "notifications.log")
    for _, body := range []string{`not json`, `{"template":"booking_confirmed"}`} {
        if _, err := handleMessage(path, []byte(body)); err == nil {
            t.Fatalf("expected error for %s", body)
        }
    }
    if _, err := os.Stat(path); !os.IsNotExist(err) {
        t.Fatal("nothing should be written for rejected payloads")
    }
}

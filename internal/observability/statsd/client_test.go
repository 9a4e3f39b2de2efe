package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestFormatTags(t *testing.T) {
	t.Parallel()

	got := formatTags(map[string]string{"result": "success", "component": "sync"})
	want := "|#component:sync,result:success"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatTagsEmpty(t *testing.T) {
	t.Parallel()

	if got := formatTags(nil); got != "" {
		t.Fatalf("formatTags(nil) = %q, want empty string", got)
	}
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{"env": "prod"}
	clone := CloneTags(original)
	clone["env"] = "stage"

	if original["env"] != "prod" {
		t.Fatalf("CloneTags aliased the original map")
	}
	if CloneTags(nil) != nil {
		t.Fatalf("CloneTags(nil) should stay nil")
	}
}

func TestDisabledClientSwallowsWrites(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	// must not panic without a connection
	client.Count("jobs.synced", 1, nil)
	client.Gauge("jobs.tracked", 3, nil)
	client.Timing("sweep", time.Second, nil)

	var nilClient *Client
	nilClient.Count("jobs.synced", 1, nil)
}

func TestClientEmitsOverUDP(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	client, err := NewClient(Config{
		Enabled: true,
		Address: conn.LocalAddr().String(),
		Prefix:  "printforge.",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	client.Count("sync.transitions", 2, map[string]string{"to": "complete"})

	buf := make([]byte, 512)
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	got := string(buf[:n])
	want := "printforge.sync.transitions:2|c|#to:complete"
	if got != want {
		t.Fatalf("metric line mismatch\n got: %q\nwant: %q", got, want)
	}
	if !strings.HasPrefix(got, "printforge.") {
		t.Fatalf("prefix trimming broke the metric name: %q", got)
	}
}

func TestCloseDisablesClient(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	client, err := NewClient(Config{Enabled: true, Address: conn.LocalAddr().String()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// writes after close are swallowed
	client.Count("late", 1, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

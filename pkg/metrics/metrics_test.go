package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCredentialMetricsExistAndIncrement(t *testing.T) {
	before := testutil.ToFloat64(CredentialSyncs.WithLabelValues("cached"))
	CredentialSyncs.WithLabelValues("cached").Inc()
	if v := testutil.ToFloat64(CredentialSyncs.WithLabelValues("cached")); v != before+1 {
		t.Fatalf("expected CredentialSyncs to grow by 1, got %v -> %v", before, v)
	}

	UpstreamRequests.WithLabelValues("test_stage", "200").Add(2)
	if v := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test_stage", "200")); v < 2 {
		t.Fatalf("expected UpstreamRequests >= 2, got %v", v)
	}

	AttestationRequests.WithLabelValues("success").Inc()
	if v := testutil.ToFloat64(AttestationRequests.WithLabelValues("success")); v < 1 {
		t.Fatalf("expected AttestationRequests >= 1, got %v", v)
	}

	CredentialAge.Set(42)
	if v := testutil.ToFloat64(CredentialAge); v != 42 {
		t.Fatalf("expected CredentialAge 42, got %v", v)
	}
}

func TestWriteTextfile(t *testing.T) {
	CredentialSyncs.WithLabelValues("failed").Inc()
	path := filepath.Join(t.TempDir(), "nsoctl.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `nsoctl_credential_sync_total{result="failed"}`) {
		t.Fatalf("textfile missing failed sync counter:\n%s", data)
	}
}

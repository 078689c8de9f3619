package prof

import (
	"context"
	"strings"
	"testing"

	"github.com/keithlinneman/nadi-go/internal/log"
)

func TestStart_Disabled(t *testing.T) {
	ctx := log.WithContext(context.Background(), log.Nop())
	stop, err := Start(ctx, Options{
		Enabled:              false,
		TenantID:             "tenant",
		ProfileMutexFraction: 999,
	})
	if err != nil {
		t.Fatalf("disabled should never error, got: %v", err)
	}
	stop()
	stop()
}

func TestStart_Enabled_EmptyServerAddress(t *testing.T) {
	stop, err := Start(context.Background(), Options{Enabled: true, AppName: "nadi-server"})
	if err == nil {
		t.Fatal("expected error for empty server address")
	}
	if !strings.Contains(err.Error(), "server address is empty") {
		t.Fatalf("error = %q", err)
	}
	if stop == nil {
		t.Fatal("stop must be non-nil on error")
	}
	stop()
}

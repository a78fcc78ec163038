package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/testutil"
)

type cliEnv struct {
	backend *testutil.FakeBackend
	config  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	backend := testutil.NewFakeBackend(t)
	dir := t.TempDir()

	config := fmt.Sprintf(`api:
  base_url: %s
  max_retries: 0
  cookie_file: %s
payment:
  poll_interval: 10ms
  deadline: 5s
journal:
  driver: sqlite3
  path: %s
logger:
  level: error
`, backend.URL(), filepath.Join(dir, "cookies.json"), filepath.Join(dir, "journal.db"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))
	return &cliEnv{backend: backend, config: path}
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--config", e.config))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "walletctl", cmd.Use)

	for _, path := range [][]string{
		{"login"}, {"register"}, {"logout"}, {"balance"}, {"history"}, {"deposit"},
		{"refresh"}, {"withdraw"}, {"rates"}, {"scan", "file"}, {"scan", "camera"},
		{"pay"}, {"status"}, {"serve"}, {"journal"},
	} {
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	config := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "", "balance", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestBalance(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "", "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "Test\n")
	assert.Contains(t, out, "Баланс: 2.000000 SOL")
	assert.Contains(t, out, "Кошелек: 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
}

func TestBalance_Unauthenticated(t *testing.T) {
	env := newCLIEnv(t)
	env.backend.Configure(func(f *testutil.FakeBackend) {
		f.User = func() testutil.Reply { return testutil.Reply{Status: 401, Body: gin.H{"error": "unauthorized"}} }
	})

	_, err := env.run(t, "", "balance")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
}

func TestHistory_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.backend.Configure(func(f *testutil.FakeBackend) {
		f.History = func() testutil.Reply {
			return testutil.OK(gin.H{"transactions": []gin.H{{
				"id": 5, "transaction_type": "payment", "amount": 0.0088, "currency": "SOL",
				"amount_rub": 100, "status": "completed", "created_at": "01.02.2025 10:00:00",
			}}})
		}
	})

	out, err := env.run(t, "", "history", "--format", "json")
	require.NoError(t, err)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxID("5"), txs[0].ID)

	out, err = env.run(t, "", "history")
	require.NoError(t, err)
	assert.Equal(t, "01.02.2025 13:00 · Оплата · -0.008800 SOL · 100 ₽ · Выполнено\n", out)
}

func TestWithdraw_ValidatesLocally(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "withdraw", "0.5", "not-an-address")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, 0, env.backend.Calls("/api/withdrawal/request"))

	_, err = env.run(t, "", "withdraw", "abc", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := env.run(t, "", "withdraw", "0.5", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	require.NoError(t, err)
	assert.Contains(t, out, "Заявка на вывод #7: 0.500000 SOL")
	assert.InDelta(t, 0.5, env.backend.LastWithdrawal().AmountSol, 1e-9)
}

func TestPay_ConfirmAndWait(t *testing.T) {
	env := newCLIEnv(t)
	env.backend.Configure(func(f *testutil.FakeBackend) {
		f.Status = func(id string, call int) testutil.Reply {
			if call < 2 {
				return testutil.OK(gin.H{"transaction_id": id, "status": "pending"})
			}
			return testutil.OK(gin.H{"transaction_id": id, "status": "completed"})
		}
	})

	out, err := env.run(t, "y\n", "pay", "ST00012|Name=Shop|Sum=10000")
	require.NoError(t, err)
	assert.Contains(t, out, "Подтверждение платежа")
	assert.Contains(t, out, "Подтвердить платеж? [y/N] ")
	assert.Contains(t, out, domain.MsgPaymentProcessing+" (#1)")
	assert.True(t, strings.HasSuffix(out, domain.MsgPaymentCompleted+"\n"))
	assert.Equal(t, 1, env.backend.Calls("/api/payment/process"))

	out, err = env.run(t, "", "journal", "--format", "json")
	require.NoError(t, err)
	var entries []domain.JournalEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	events := make([]domain.JournalEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Event)
	}
	assert.ElementsMatch(t, []domain.JournalEvent{domain.JournalReserved, domain.JournalConfirmed, domain.JournalCompleted}, events)
}

func TestPay_Declined(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "n\n", "pay", "ST00012|Sum=10000")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, domain.MsgPaymentCancelled+"\n"))
	assert.Equal(t, 0, env.backend.Calls("/api/payment/process"))
}

func TestPay_Rejected(t *testing.T) {
	env := newCLIEnv(t)
	env.backend.Configure(func(f *testutil.FakeBackend) {
		f.Scan = func(domain.ScanRequest) testutil.Reply {
			return testutil.Reply{Status: 400, Body: gin.H{"error": "limit exceeded"}}
		}
	})

	_, err := env.run(t, "", "pay", "--yes", "ST00012|Sum=10000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "limit exceeded")
}

func TestStatus_Failed(t *testing.T) {
	env := newCLIEnv(t)
	env.backend.Configure(func(f *testutil.FakeBackend) {
		f.Status = func(id string, call int) testutil.Reply {
			return testutil.OK(gin.H{"transaction_id": id, "status": "error", "error_message": "Недостаточно средств"})
		}
	})

	out, err := env.run(t, "", "status", "42")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Ошибка: Недостаточно средств")
}

func TestScanCamera_Simulated(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "scan", "camera", "--simulate", "ST00012|Name=Shop|Sum=10000", "--yes", "--no-wait")
	require.NoError(t, err)
	assert.Contains(t, out, "Распознано: ST00012|Name=Shop|Sum=10000")
	assert.Contains(t, out, "Подтверждение платежа")
	assert.Contains(t, out, domain.MsgPaymentProcessing+" (#1)")
}

func TestScanCamera_NeedsSource(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "", "scan", "camera")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogin_TwoSteps(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "https://t.me/bot?start=login_ABC123")

	out, err = env.run(t, "", "login", "--code", " abc123 ")
	require.NoError(t, err)
	assert.Contains(t, out, "Test\n")

	_, err = env.run(t, "", "login", "--code", "ZZZ999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

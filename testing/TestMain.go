package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("CRMDESK_TEST_MODE", "1")
		// Nothing under test may reach a real CRM API or Gotenberg.
		for key, value := range map[string]string{
			"CRM_API_URL":   "http://127.0.0.1:1",
			"GOTENBERG_URL": "http://127.0.0.1:0",
		} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}

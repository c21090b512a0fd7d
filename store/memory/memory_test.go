package memory

import (
	"testing"
	"time"

	"github.com/MrEthical07/authcore/internal/storetest"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

func TestUserStoreContract(t *testing.T) {
	storetest.RunUserStore(t, func(*testing.T) user.Store {
		return NewUserStore(func() time.Time { return storetest.Epoch })
	})
}

func TestSessionStoreContract(t *testing.T) {
	storetest.RunSessionStore(t, func(*testing.T) session.Store {
		return NewSessionStore()
	}, nil)
}

// Package access holds the static allow-list of Telegram users.
package access

import (
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Gate answers whether a user may use the bot. It is immutable after NewGate.
type Gate struct {
	allowed map[int64]struct{}
}

// NewGate parses a comma-separated list of user IDs. Tokens that are empty or
// not integers are dropped.
func NewGate(list string) *Gate {
	g := &Gate{allowed: make(map[int64]struct{})}
	for _, token := range strings.Split(list, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			log.Debugf("Ignoring malformed user id %q in allow-list", token)
			continue
		}
		g.allowed[id] = struct{}{}
	}
	return g
}

// IsAllowed reports whether userID is in the allow-list.
func (g *Gate) IsAllowed(userID int64) bool {
	_, ok := g.allowed[userID]
	return ok
}

// IDs returns the allow-list in ascending order.
func (g *Gate) IDs() []int64 {
	ids := make([]int64, 0, len(g.allowed))
	for id := range g.allowed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LogResolved writes the resolved allow-list once at startup.
func (g *Gate) LogResolved() {
	ids := g.IDs()
	if len(ids) == 0 {
		log.Warn("Allow-list is empty, every user will be denied")
		return
	}
	log.WithField("count", len(ids)).Infof("Authorized users: %v", ids)
}

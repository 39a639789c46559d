package api

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/server"
)

const (
	editionJava    = "java"
	editionBedrock = "bedrock"
)

type playerDTO struct {
	Username   string `json:"username"`
	UUID       string `json:"uuid"`
	RemoteAddr string `json:"remoteAddress"`
	Edition    string `json:"edition"`
	DeviceOS   string `json:"deviceOs,omitempty"`
	Linked     bool   `json:"linked"`
}

// players tracks logged in players by their login and leave events.
type players struct {
	mu sync.RWMutex
	m  map[uuid.UUID]playerDTO
}

func newPlayers() *players {
	return &players{
		m: map[uuid.UUID]playerDTO{},
	}
}

func (pp *players) handleEvent(e event.Event) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	switch e := e.Data.(type) {
	case server.LoginEvent:
		pp.m[e.Player.UUID] = newPlayerDTO(e.Player)
	case server.PlayerLeaveEvent:
		delete(pp.m, e.Player.UUID)
	}
}

func newPlayerDTO(p server.PlayerInfo) playerDTO {
	dto := playerDTO{
		Username: p.Username,
		UUID:     p.UUID.String(),
		Edition:  editionJava,
	}

	if p.RemoteAddr != nil {
		dto.RemoteAddr = p.RemoteAddr.String()
	}

	if p.Identity != nil {
		dto.Edition = editionBedrock
		dto.DeviceOS = p.Identity.DeviceOS.String()
		dto.Linked = p.Identity.IsLinked()
	}
	return dto
}

// find returns the players whose username matches usernameRegex sorted by
// username. An empty edition matches every edition.
func (pp *players) find(usernameRegex, edition string) ([]playerDTO, error) {
	switch edition {
	case "", editionJava, editionBedrock:
	default:
		return nil, fmt.Errorf("unknown edition %q", edition)
	}

	re, err := regexp.Compile(usernameRegex)
	if err != nil {
		return nil, err
	}

	pp.mu.RLock()
	defer pp.mu.RUnlock()

	res := make([]playerDTO, 0, len(pp.m))
	for _, p := range pp.m {
		if edition != "" && p.Edition != edition {
			continue
		}

		if !re.MatchString(p.Username) {
			continue
		}
		res = append(res, p)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Username < res[j].Username
	})
	return res, nil
}

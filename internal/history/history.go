// Package history fetches the player's bet history.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"slot-lobby/internal/gateway"
	"slot-lobby/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	path            = "/unity/get-game-history"
	defaultPage     = 1
	defaultPageSize = 10
)

var ErrInvalidResponse = errors.New("invalid_history_response")

type Filters struct {
	TableID   string
	Page      int
	PageSize  int
	StartDate int64
	EndDate   int64
}

type Item struct {
	RoundID         string       `json:"round_id"`
	TableID         string       `json:"table_id"`
	TableName       string       `json:"table_name"`
	StakeAmount     float64      `json:"stake_amount"`
	IsFreeSpin      bool         `json:"is_free_spin"`
	GoldenWheelSpin bool         `json:"golden_wheel_spin"`
	GameStatus      string       `json:"game_status"`
	Result          [][]string   `json:"result"`
	ResultList      [][][]string `json:"resultList"`
	WonAmount       float64      `json:"won_amount"`
	CreatedAt       int64        `json:"created_at"`
	UpdatedAt       int64        `json:"updated_at"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Status     string     `json:"status"`
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type ExpiryHandler interface {
	HandleExpiry(reason string)
}

type Requester interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

type Service struct {
	gw      Requester
	session storage.Scope
	expiry  ExpiryHandler
}

func NewService(gw Requester, session storage.Scope, expiry ExpiryHandler) *Service {
	return &Service{gw: gw, session: session, expiry: expiry}
}

type request struct {
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
	TableID   string `json:"tableId,omitempty"`
	StartDate int64  `json:"startDate,omitempty"`
	EndDate   int64  `json:"endDate,omitempty"`
}

type wireItem struct {
	RoundID    flexString   `json:"roundId"`
	BetAmount  float64      `json:"betAmount"`
	Won        float64      `json:"won"`
	IsFreeSpin bool         `json:"isFreeSpin"`
	Result     [][]string   `json:"result"`
	ResultList [][][]string `json:"resultList"`
	EndTime    int64        `json:"endTime"`
	TableID    flexString   `json:"tableId"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	*f = flexString(b)
	return nil
}

type response struct {
	Status       string     `json:"status"`
	History      []wireItem `json:"history"`
	Page         int        `json:"page"`
	PageSize     int        `json:"pageSize"`
	TotalRecords int        `json:"totalRecords"`
	TotalPages   int        `json:"totalPages"`
}

// Fetch returns one page of history. Without a session token, or when the
// server answers 401, it returns nil; the 401 case also expires the session.
func (s *Service) Fetch(ctx context.Context, f Filters) (*Page, error) {
	token, _ := s.session.Get(storage.KeyToken)
	if token == "" {
		log.Debug().Msg("history_skip_no_token")
		return nil, nil
	}
	req := request{
		Page:      f.Page,
		PageSize:  f.PageSize,
		TableID:   f.TableID,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}
	if req.Page <= 0 {
		req.Page = defaultPage
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	resp, err := s.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: path, Body: req, Bearer: token})
	if err != nil {
		var se *gateway.StatusError
		if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
			if s.expiry != nil {
				s.expiry.HandleExpiry("history returned 401")
			}
			return nil, nil
		}
		return nil, err
	}

	var body response
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if body.Status != "RS_OK" {
		log.Warn().Str("status", body.Status).Msg("history_unexpected_status")
		return nil, fmt.Errorf("%w: status %q", ErrInvalidResponse, body.Status)
	}

	items := make([]Item, 0, len(body.History))
	for _, h := range body.History {
		tableID := string(h.TableID)
		if tableID == "" {
			tableID = f.TableID
		}
		status := "open"
		if h.Won > 0 {
			status = "closed"
		}
		items = append(items, Item{
			RoundID:     string(h.RoundID),
			TableID:     tableID,
			StakeAmount: h.BetAmount,
			IsFreeSpin:  h.IsFreeSpin,
			GameStatus:  status,
			Result:      h.Result,
			ResultList:  h.ResultList,
			WonAmount:   h.Won,
			CreatedAt:   h.EndTime,
			UpdatedAt:   h.EndTime,
		})
	}
	return &Page{
		Status: "success",
		Items:  items,
		Pagination: Pagination{
			Page:       body.Page,
			PageSize:   body.PageSize,
			Total:      body.TotalRecords,
			TotalPages: body.TotalPages,
		},
	}, nil
}

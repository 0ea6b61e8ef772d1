package civic

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/civiq/civiq/internal/cache"
	"github.com/civiq/civiq/internal/metrics"
)

// Vote is one roll-call vote summary.
type Vote struct {
	Chamber  string `json:"chamber"`
	Number   string `json:"number"`
	Date     string `json:"date,omitempty"`
	Issue    string `json:"issue,omitempty"`
	Question string `json:"question,omitempty"`
	Result   string `json:"result,omitempty"`
	Yeas     int    `json:"yeas"`
	Nays     int    `json:"nays"`
}

// Position is one member's recorded position on a House roll call.
type Position struct {
	BioguideID string `json:"bioguideId"`
	Party      string `json:"party,omitempty"`
	State      string `json:"state,omitempty"`
	Vote       string `json:"vote"`
}

// HouseVote is a House roll call with per-member positions attached.
type HouseVote struct {
	Vote      Vote       `json:"vote"`
	Positions []Position `json:"positions,omitempty"`
}

// RollcallConfig points the client at the Senate and House vote feeds.
type RollcallConfig struct {
	SenateBaseURL string
	HouseBaseURL  string
	Timeout       time.Duration
	TTL           time.Duration
}

// RollcallClient consumes the Senate and House roll-call XML feeds. The
// decoded feeds are re-serialized as JSON for the result cache so both
// chambers share one cache shape.
type RollcallClient struct {
	cfg RollcallConfig
	f   fetcher
}

// NewRollcall builds a roll-call client backed by the shared result cache.
func NewRollcall(cfg RollcallConfig, store cache.Store, recorder *metrics.Recorder) *RollcallClient {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &RollcallClient{
		cfg: cfg,
		f:   newFetcher("rollcall", cfg.Timeout, cfg.TTL, store, recorder),
	}
}

// senateVoteMenu mirrors the Senate vote_menu XML. All fields optional.
type senateVoteMenu struct {
	XMLName xml.Name `xml:"vote_summary"`
	Votes   struct {
		Vote []struct {
			VoteNumber string `xml:"vote_number"`
			VoteDate   string `xml:"vote_date"`
			Issue      string `xml:"issue"`
			Question   string `xml:"question"`
			Result     string `xml:"result"`
			VoteTally  struct {
				Yeas int `xml:"yeas"`
				Nays int `xml:"nays"`
			} `xml:"vote_tally"`
		} `xml:"vote"`
	} `xml:"votes"`
}

// SenateVotes returns the roll-call summaries for one congress and session.
func (c *RollcallClient) SenateVotes(ctx context.Context, congress, session int) ([]Vote, error) {
	if congress <= 0 || session < 1 || session > 2 {
		return nil, &UpstreamError{Dependency: "rollcall", Reason: "congress and session required"}
	}

	key := fmt.Sprintf("rollcall:senate:%d:%d", congress, session)
	payload, err := c.f.cachedJSON(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		endpoint := fmt.Sprintf("%s/vote%d%d/vote_menu_%d_%d.xml",
			strings.TrimRight(c.cfg.SenateBaseURL, "/"), congress, session, congress, session)
		body, err := c.f.get(ctx, endpoint, nil)
		if err != nil {
			return nil, err
		}

		var menu senateVoteMenu
		if err := xml.Unmarshal(body, &menu); err != nil {
			// Malformed feed: cache an empty list rather than erroring.
			return json.Marshal([]Vote{})
		}

		votes := make([]Vote, 0, len(menu.Votes.Vote))
		for _, v := range menu.Votes.Vote {
			votes = append(votes, Vote{
				Chamber:  "Senate",
				Number:   v.VoteNumber,
				Date:     v.VoteDate,
				Issue:    v.Issue,
				Question: v.Question,
				Result:   v.Result,
				Yeas:     v.VoteTally.Yeas,
				Nays:     v.VoteTally.Nays,
			})
		}
		return json.Marshal(votes)
	})
	if err != nil {
		return nil, err
	}

	var votes []Vote
	if err := json.Unmarshal(payload, &votes); err != nil {
		return nil, nil
	}
	return votes, nil
}

// houseRollcall mirrors the Clerk's per-vote XML.
type houseRollcall struct {
	XMLName  xml.Name `xml:"rollcall-vote"`
	Metadata struct {
		RollcallNum string `xml:"rollcall-num"`
		ActionDate  string `xml:"action-date"`
		LegisNum    string `xml:"legis-num"`
		Question    string `xml:"vote-question"`
		Result      string `xml:"vote-result"`
		TotalsByVote struct {
			TotalsByVoteTotal []struct {
				Type  string `xml:"vote-type"`
				Total int    `xml:"vote-total"`
			} `xml:"totals-by-vote-total"`
		} `xml:"vote-totals"`
	} `xml:"vote-metadata"`
	Data struct {
		RecordedVote []struct {
			Legislator struct {
				NameID string `xml:"name-id,attr"`
				Party  string `xml:"party,attr"`
				State  string `xml:"state,attr"`
			} `xml:"legislator"`
			Vote string `xml:"vote"`
		} `xml:"recorded-vote"`
	} `xml:"vote-data"`
}

// HouseRollcall returns one House roll call with member positions.
func (c *RollcallClient) HouseRollcall(ctx context.Context, year, roll int) (*HouseVote, error) {
	if year <= 0 || roll <= 0 {
		return nil, &UpstreamError{Dependency: "rollcall", Reason: "year and roll number required"}
	}

	key := fmt.Sprintf("rollcall:house:%d:%d", year, roll)
	payload, err := c.f.cachedJSON(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		endpoint := fmt.Sprintf("%s/%d/roll%03d.xml", strings.TrimRight(c.cfg.HouseBaseURL, "/"), year, roll)
		body, err := c.f.get(ctx, endpoint, nil)
		if err != nil {
			return nil, err
		}

		var decoded houseRollcall
		if err := xml.Unmarshal(body, &decoded); err != nil {
			return json.Marshal(HouseVote{})
		}

		out := HouseVote{
			Vote: Vote{
				Chamber:  "House",
				Number:   decoded.Metadata.RollcallNum,
				Date:     decoded.Metadata.ActionDate,
				Issue:    decoded.Metadata.LegisNum,
				Question: decoded.Metadata.Question,
				Result:   decoded.Metadata.Result,
			},
		}
		for _, total := range decoded.Metadata.TotalsByVote.TotalsByVoteTotal {
			switch strings.ToLower(strings.TrimSpace(total.Type)) {
			case "yea", "aye":
				out.Vote.Yeas += total.Total
			case "nay", "no":
				out.Vote.Nays += total.Total
			}
		}
		for _, rv := range decoded.Data.RecordedVote {
			if rv.Legislator.NameID == "" {
				continue
			}
			out.Positions = append(out.Positions, Position{
				BioguideID: rv.Legislator.NameID,
				Party:      rv.Legislator.Party,
				State:      rv.Legislator.State,
				Vote:       rv.Vote,
			})
		}
		return json.Marshal(out)
	})
	if err != nil {
		return nil, err
	}

	var vote HouseVote
	if err := json.Unmarshal(payload, &vote); err != nil {
		return nil, nil
	}
	if vote.Vote.Number == "" && len(vote.Positions) == 0 {
		return nil, nil
	}
	return &vote, nil
}

package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/following"
	"github.com/Luismorlan/insighthub/model"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/sirupsen/logrus"
)

type FollowingReader interface {
	GetFollowingCompanies(ctx context.Context, userId string) ([]string, error)
	GetFollowingInfo(ctx context.Context, userId string, companyId string) (*following.Info, error)
}

type MentionReader interface {
	GetContentCompanies(ctx context.Context, contentId string) ([]string, error)
	GetCompaniesByIds(ctx context.Context, ids []string) ([]model.Company, error)
}

type CompanyInfo struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Priority int    `json:"priority"`
}

// MatchResult explains whether a content item is worth an eager summary for a
// user.
type MatchResult struct {
	ShouldSummarize       bool          `json:"should_summarize"`
	MatchedCompanies      []string      `json:"matched_companies"`
	MatchedCompanyInfo    []CompanyInfo `json:"matched_company_info"`
	TotalFollowing        int           `json:"total_following"`
	TotalContentCompanies int           `json:"total_content_companies"`
	// MatchRatio is matched / content companies, 0 when nothing was extracted.
	MatchRatio  float64 `json:"match_ratio"`
	MaxPriority int     `json:"max_priority"`
	Reason      string  `json:"reason"`
	// Err is set when the decision fell back to no match because a store
	// failed.
	Err error `json:"-"`
}

type Matcher struct {
	following FollowingReader
	mentions  MentionReader
}

func NewMatcher(f FollowingReader, m MentionReader) *Matcher {
	return &Matcher{following: f, mentions: m}
}

// ShouldAutoSummarize intersects the user's auto summarize companies with the
// companies the content mentions. It never returns an error: any store
// failure degrades to a no match result carrying the failure in Reason.
func (m *Matcher) ShouldAutoSummarize(ctx context.Context, contentId string, userId string) MatchResult {
	res, err := m.match(ctx, contentId, userId)
	if err != nil {
		Log.WithFields(logrus.Fields{"content_id": contentId, "user_id": userId}).
			Warnf("company matching failed, not summarizing: %v", err)
		return MatchResult{
			MatchedCompanies:   []string{},
			MatchedCompanyInfo: []CompanyInfo{},
			Reason:             fmt.Sprintf("matching failed: %v", err),
			Err:                err,
		}
	}
	return res
}

func (m *Matcher) match(ctx context.Context, contentId string, userId string) (MatchResult, error) {
	followed, err := m.following.GetFollowingCompanies(ctx, userId)
	if err != nil {
		return MatchResult{}, err
	}
	mentioned, err := m.mentions.GetContentCompanies(ctx, contentId)
	if err != nil {
		return MatchResult{}, err
	}

	followedSet := toSet(followed)
	mentionedSet := toSet(mentioned)
	res := MatchResult{
		MatchedCompanies:      []string{},
		MatchedCompanyInfo:    []CompanyInfo{},
		TotalFollowing:        len(followedSet),
		TotalContentCompanies: len(mentionedSet),
	}

	matched := []string{}
	for id := range mentionedSet {
		if followedSet[id] {
			matched = append(matched, id)
		}
	}

	if len(mentionedSet) == 0 {
		res.Reason = "no companies mentioned in content"
		return res, nil
	}
	if len(matched) == 0 {
		res.Reason = fmt.Sprintf("%d companies mentioned, none followed", len(mentionedSet))
		return res, nil
	}

	infos, err := m.companyInfos(ctx, userId, matched)
	if err != nil {
		return MatchResult{}, err
	}

	res.ShouldSummarize = true
	res.MatchedCompanyInfo = infos
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		res.MatchedCompanies = append(res.MatchedCompanies, info.Id)
		names = append(names, info.Name)
		if info.Priority > res.MaxPriority {
			res.MaxPriority = info.Priority
		}
	}
	res.MatchRatio = float64(len(matched)) / float64(len(mentionedSet))
	res.Reason = fmt.Sprintf("matched %d of %d mentioned companies: %s", len(matched), len(mentionedSet), strings.Join(names, ", "))
	return res, nil
}

// companyInfos resolves names and priorities of the matched companies,
// ordered by priority desc then name.
func (m *Matcher) companyInfos(ctx context.Context, userId string, ids []string) ([]CompanyInfo, error) {
	companies, err := m.mentions.GetCompaniesByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	byId := make(map[string]model.Company, len(companies))
	for _, c := range companies {
		byId[c.Id] = c
	}

	infos := make([]CompanyInfo, 0, len(ids))
	for _, id := range ids {
		info := CompanyInfo{Id: id, Name: id, Priority: model.DefaultPriority}
		if c, ok := byId[id]; ok {
			info.Name, info.Industry = c.Name, c.Industry
		}

		f, err := m.following.GetFollowingInfo(ctx, userId, id)
		switch {
		case err == nil:
			info.Priority = f.Priority
		case apperr.IsNotFound(err):
			// Unfollowed between the two reads, keep the default.
		default:
			return nil, err
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Priority != infos[j].Priority {
			return infos[i].Priority > infos[j].Priority
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

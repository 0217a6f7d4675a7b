package matcher

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/following"
	"github.com/Luismorlan/insighthub/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFollowing struct {
	companies map[string][]string
	// priorities by user then company
	priorities map[string]map[string]int
	err        error
	infoErr    error
}

func (f *fakeFollowing) GetFollowingCompanies(ctx context.Context, userId string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.companies[userId], nil
}

func (f *fakeFollowing) GetFollowingInfo(ctx context.Context, userId string, companyId string) (*following.Info, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	p, ok := f.priorities[userId][companyId]
	if !ok {
		return nil, apperr.NotFoundf("following")
	}
	return &following.Info{CompanyId: companyId, Priority: p, AutoSummarize: true}, nil
}

type fakeMentions struct {
	content   map[string][]string
	companies map[string]model.Company
	err       error
}

func (f *fakeMentions) GetContentCompanies(ctx context.Context, contentId string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content[contentId], nil
}

func (f *fakeMentions) GetCompaniesByIds(ctx context.Context, ids []string) ([]model.Company, error) {
	out := []model.Company{}
	for _, id := range ids {
		if c, ok := f.companies[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func newFakes() (*fakeFollowing, *fakeMentions) {
	f := &fakeFollowing{
		companies:  map[string][]string{"u": {"C"}},
		priorities: map[string]map[string]int{"u": {"C": 3}},
	}
	m := &fakeMentions{
		content: map[string][]string{"X": {"C", "D"}, "Y": {"E"}},
		companies: map[string]model.Company{
			"C": {Id: "C", Name: "Cobalt", Industry: "mining"},
			"D": {Id: "D", Name: "Delta"},
			"E": {Id: "E", Name: "Echo"},
		},
	}
	return f, m
}

func TestShouldAutoSummarize_Match(t *testing.T) {
	f, m := newFakes()
	res := NewMatcher(f, m).ShouldAutoSummarize(context.Background(), "X", "u")

	assert.True(t, res.ShouldSummarize)
	assert.Equal(t, []string{"C"}, res.MatchedCompanies)
	assert.Equal(t, []CompanyInfo{{Id: "C", Name: "Cobalt", Industry: "mining", Priority: 3}}, res.MatchedCompanyInfo)
	assert.Equal(t, 3, res.MaxPriority)
	assert.Equal(t, 0.5, res.MatchRatio)
	assert.Equal(t, 1, res.TotalFollowing)
	assert.Equal(t, 2, res.TotalContentCompanies)
	assert.Contains(t, res.Reason, "Cobalt")
	assert.Nil(t, res.Err)
}

func TestShouldAutoSummarize_ReasonsAreDistinct(t *testing.T) {
	f, m := newFakes()
	matcher := NewMatcher(f, m)

	notFollowed := matcher.ShouldAutoSummarize(context.Background(), "Y", "u")
	noCompanies := matcher.ShouldAutoSummarize(context.Background(), "Z", "u")
	nobody := matcher.ShouldAutoSummarize(context.Background(), "Y", "someone-else")

	for _, res := range []MatchResult{notFollowed, noCompanies, nobody} {
		assert.False(t, res.ShouldSummarize)
		assert.Equal(t, 0.0, res.MatchRatio)
		assert.Equal(t, 0, res.MaxPriority)
		assert.Empty(t, res.MatchedCompanies)
	}
	assert.NotEqual(t, notFollowed.Reason, noCompanies.Reason)
	assert.Contains(t, noCompanies.Reason, "no companies mentioned")
	assert.Contains(t, notFollowed.Reason, "none followed")
	assert.Equal(t, 0, nobody.TotalFollowing)
}

func TestShouldAutoSummarize_FailuresDegradeToNoMatch(t *testing.T) {
	cases := map[string]func(f *fakeFollowing, m *fakeMentions){
		"following":      func(f *fakeFollowing, m *fakeMentions) { f.err = errors.New("redis down") },
		"mentions":       func(f *fakeFollowing, m *fakeMentions) { m.err = errors.New("db down") },
		"following info": func(f *fakeFollowing, m *fakeMentions) { f.infoErr = errors.New("db down") },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			f, m := newFakes()
			breakIt(f, m)
			res := NewMatcher(f, m).ShouldAutoSummarize(context.Background(), "X", "u")
			assert.False(t, res.ShouldSummarize)
			assert.Error(t, res.Err)
			assert.Contains(t, res.Reason, "down")
			assert.Empty(t, res.MatchedCompanies)
		})
	}
}

func TestShouldAutoSummarize_MissingInfoUsesDefaultPriority(t *testing.T) {
	f, m := newFakes()
	f.priorities = map[string]map[string]int{}

	res := NewMatcher(f, m).ShouldAutoSummarize(context.Background(), "X", "u")
	require.True(t, res.ShouldSummarize)
	assert.Equal(t, model.DefaultPriority, res.MaxPriority)
}

func TestShouldAutoSummarize_IntersectionProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	universe := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	pick := func() []string {
		out := []string{}
		for _, id := range universe {
			if r.Intn(3) == 0 {
				out = append(out, id)
			}
		}
		return out
	}

	for i := 0; i < 200; i++ {
		followed, mentioned := pick(), pick()
		f := &fakeFollowing{
			companies:  map[string][]string{"u": followed},
			priorities: map[string]map[string]int{"u": {}},
		}
		for _, id := range followed {
			f.priorities["u"][id] = 1 + r.Intn(model.MaxPriority)
		}
		m := &fakeMentions{content: map[string][]string{"x": mentioned}, companies: map[string]model.Company{}}

		res := NewMatcher(f, m).ShouldAutoSummarize(context.Background(), "x", "u")

		want := 0
		maxPriority := 0
		for _, id := range mentioned {
			for _, fid := range followed {
				if id == fid {
					want++
					if f.priorities["u"][id] > maxPriority {
						maxPriority = f.priorities["u"][id]
					}
				}
			}
		}
		msg := fmt.Sprintf("followed=%v mentioned=%v", followed, mentioned)
		assert.Equal(t, want > 0, res.ShouldSummarize, msg)
		assert.Len(t, res.MatchedCompanies, want, msg)
		assert.GreaterOrEqual(t, res.MatchRatio, 0.0, msg)
		assert.LessOrEqual(t, res.MatchRatio, 1.0, msg)
		assert.Equal(t, maxPriority, res.MaxPriority, msg)
		if len(mentioned) == 0 {
			assert.Equal(t, 0.0, res.MatchRatio, msg)
		}
	}
}

func TestSortByPriority(t *testing.T) {
	item := func(id string, priority int, ratio float64) PriorityItem {
		return PriorityItem{ContentId: id, Match: MatchResult{MaxPriority: priority, MatchRatio: ratio}}
	}
	items := []PriorityItem{
		item("low", 1, 1.0),
		item("tie-first", 3, 0.5),
		item("high-ratio", 3, 0.9),
		item("tie-second", 3, 0.5),
		item("top", 5, 0.1),
	}
	SortByPriority(items)

	got := []string{}
	for _, it := range items {
		got = append(got, it.ContentId)
	}
	assert.Equal(t, []string{"top", "high-ratio", "tie-first", "tie-second", "low"}, got)
}

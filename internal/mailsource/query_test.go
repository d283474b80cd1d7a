package mailsource

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryCutoff(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	q := NewQuery(now, 7, []string{"invoice"})

	assert.Equal(t, time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC), q.Since)
	assert.Equal(t, []string{"invoice"}, q.SubjectAny)
}

func TestBuildCriteriaNoKeywords(t *testing.T) {
	since := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	criteria := buildCriteria(Query{Since: since})

	assert.Equal(t, since, criteria.Since)
	assert.Empty(t, criteria.Header)
	assert.Empty(t, criteria.Or)
}

func TestBuildCriteriaSingleKeyword(t *testing.T) {
	criteria := buildCriteria(Query{
		Since:      time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		SubjectAny: []string{"invoice"},
	})

	require.Len(t, criteria.Header, 1)
	assert.Equal(t, "Subject", criteria.Header[0].Key)
	assert.Equal(t, "invoice", criteria.Header[0].Value)
	assert.Empty(t, criteria.Or)
}

func TestBuildCriteriaFoldsKeywordsIntoOr(t *testing.T) {
	criteria := buildCriteria(Query{
		Since:      time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		SubjectAny: []string{"invoice", "receipt", "order"},
	})

	// ((invoice OR receipt) OR order), ANDed with SINCE.
	assert.False(t, criteria.Since.IsZero())
	assert.Empty(t, criteria.Header)
	require.Len(t, criteria.Or, 1)

	outer := criteria.Or[0]
	require.Len(t, outer[1].Header, 1)
	assert.Equal(t, "order", outer[1].Header[0].Value)

	require.Len(t, outer[0].Or, 1)
	inner := outer[0].Or[0]
	require.Len(t, inner[0].Header, 1)
	assert.Equal(t, "invoice", inner[0].Header[0].Value)
	require.Len(t, inner[1].Header, 1)
	assert.Equal(t, "receipt", inner[1].Header[0].Value)
}

func TestSubjectContains(t *testing.T) {
	c := subjectContains("billing statement")
	require.Len(t, c.Header, 1)
	assert.Equal(t, imap.SearchCriteriaHeaderField{Key: "Subject", Value: "billing statement"}, c.Header[0])
}

package domain_test

import (
	"testing"

	"copilot-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
)

func candidateDatabases() []domain.DatabaseDescriptor {
	return []domain.DatabaseDescriptor{
		{
			ID:   "db-tasks",
			Name: "Tasks",
			Fields: []domain.DatabaseField{
				{ID: "status", Name: "Status", Type: "select"},
				{ID: "assignee", Name: "Assignee", Type: "person"},
			},
		},
		{
			ID:   "db-notes",
			Name: "Meeting Notes",
			Fields: []domain.DatabaseField{
				{ID: "date", Name: "Date", Type: "date"},
			},
		},
	}
}

func TestDatabaseFilterPlan_Sanitize(t *testing.T) {
	t.Run("drops unknown database ids", func(t *testing.T) {
		plan := domain.DatabaseFilterPlan{DatabaseIDs: []string{"db-tasks", "db-ghost"}}
		clean := plan.Sanitize(candidateDatabases())
		assert.Equal(t, []string{"db-tasks"}, clean.DatabaseIDs)
	})

	t.Run("drops filters on unknown fields", func(t *testing.T) {
		plan := domain.DatabaseFilterPlan{
			DatabaseIDs: []string{"db-tasks"},
			FieldFilters: map[string][]domain.FieldFilter{
				"db-tasks": {
					{FieldID: "status", Operator: domain.FilterEquals, Value: "Done"},
					{FieldID: "priority", Operator: domain.FilterEquals, Value: "High"},
				},
			},
		}
		clean := plan.Sanitize(candidateDatabases())
		assert.Len(t, clean.FieldFilters["db-tasks"], 1)
		assert.Equal(t, "status", clean.FieldFilters["db-tasks"][0].FieldID)
	})

	t.Run("drops filters with unknown operators", func(t *testing.T) {
		plan := domain.DatabaseFilterPlan{
			DatabaseIDs: []string{"db-tasks"},
			FieldFilters: map[string][]domain.FieldFilter{
				"db-tasks": {{FieldID: "status", Operator: "greater_than", Value: "1"}},
			},
		}
		clean := plan.Sanitize(candidateDatabases())
		assert.Empty(t, clean.FieldFilters)
	})

	t.Run("filters for dropped databases disappear", func(t *testing.T) {
		plan := domain.DatabaseFilterPlan{
			DatabaseIDs: []string{"db-ghost"},
			FieldFilters: map[string][]domain.FieldFilter{
				"db-ghost": {{FieldID: "status", Operator: domain.FilterEquals, Value: "Done"}},
			},
		}
		clean := plan.Sanitize(candidateDatabases())
		assert.True(t, clean.IsEmpty())
		assert.Empty(t, clean.FieldFilters)
	})

	t.Run("deduplicates database ids", func(t *testing.T) {
		plan := domain.DatabaseFilterPlan{DatabaseIDs: []string{"db-notes", "db-notes"}}
		clean := plan.Sanitize(candidateDatabases())
		assert.Equal(t, []string{"db-notes"}, clean.DatabaseIDs)
	})

	t.Run("empty candidate set empties the plan", func(t *testing.T) {
		plan := domain.DatabaseFilterPlan{DatabaseIDs: []string{"db-tasks"}}
		clean := plan.Sanitize(nil)
		assert.True(t, clean.IsEmpty())
	})
}

// Package search keeps an in-memory full-text index of game names and aliases.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/gamdit/gamebox/internal/models"
)

type gameDoc struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// GameIndex maps free text to IGDB ids. It is rebuilt from the database on
// startup and updated on every upsert.
type GameIndex struct {
	index bleve.Index
}

func NewGameIndex() (*GameIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create game index: %w", err)
	}
	return &GameIndex{index: index}, nil
}

func (i *GameIndex) Index(games ...models.Game) error {
	batch := i.index.NewBatch()
	for _, g := range games {
		if err := batch.Index(docID(g.IGDBID), gameDoc{Name: g.Name, Aliases: g.Aliases}); err != nil {
			return fmt.Errorf("failed to index game %d: %w", g.IGDBID, err)
		}
	}
	return i.index.Batch(batch)
}

func (i *GameIndex) Delete(igdbID int64) error {
	return i.index.Delete(docID(igdbID))
}

// Search returns IGDB ids best match first. The last word is also matched as
// a prefix so partially typed names still hit.
func (i *GameIndex) Search(text string, limit int) ([]int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []int64{}, nil
	}

	match := bleve.NewMatchQuery(text)
	queries := []query.Query{match}
	words := strings.Fields(strings.ToLower(text))
	if last := words[len(words)-1]; len(last) >= 2 {
		for _, field := range []string{"name", "aliases"} {
			prefix := bleve.NewPrefixQuery(last)
			prefix.SetField(field)
			queries = append(queries, prefix)
		}
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(queries...), limit, 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("game search failed: %w", err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (i *GameIndex) Count() (uint64, error) {
	return i.index.DocCount()
}

func (i *GameIndex) Close() error {
	return i.index.Close()
}

func docID(igdbID int64) string {
	return strconv.FormatInt(igdbID, 10)
}

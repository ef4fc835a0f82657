package igdb

import (
	"strconv"
	"strings"
)

// Query builds an Apicalypse request body, e.g.
//
//	fields name,cover.image_id; search "zelda"; where category = 0; limit 10;
type Query struct {
	fields []string
	search string
	where  []string
	sort   string
	limit  int
	offset int
}

func NewQuery(fields ...string) *Query {
	return &Query{fields: fields}
}

func (q *Query) Search(term string) *Query {
	q.search = term
	return q
}

// Where adds a condition; multiple conditions are joined with &.
func (q *Query) Where(cond string) *Query {
	q.where = append(q.where, cond)
	return q
}

func (q *Query) WhereIDs(ids []int64) *Query {
	return q.Where("id = (" + joinIDs(ids) + ")")
}

func (q *Query) Sort(field, dir string) *Query {
	q.sort = field + " " + dir
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

func (q *Query) String() string {
	var b strings.Builder
	fields := "*"
	if len(q.fields) > 0 {
		fields = strings.Join(q.fields, ",")
	}
	b.WriteString("fields " + fields + ";")
	if q.search != "" {
		b.WriteString(" search " + strconv.Quote(sanitize(q.search)) + ";")
	}
	if len(q.where) > 0 {
		b.WriteString(" where " + strings.Join(q.where, " & ") + ";")
	}
	if q.sort != "" {
		b.WriteString(" sort " + q.sort + ";")
	}
	if q.limit > 0 {
		b.WriteString(" limit " + strconv.Itoa(q.limit) + ";")
	}
	if q.offset > 0 {
		b.WriteString(" offset " + strconv.Itoa(q.offset) + ";")
	}
	return b.String()
}

// sanitize strips characters that would end the quoted search term.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', ';':
			return ' '
		}
		if r < 0x20 {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

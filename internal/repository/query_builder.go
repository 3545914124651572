package repository

import (
	"fmt"
	"strings"

	"houser/internal/model"
)

// rent/buy price thresholds for mislabelled listings
const (
	rentPriceCeiling = 200000
	buyPriceFloor    = 2000000
)

const listingColumns = `
		p.id, p.title, p.description, p.location, p.price,
		p.bedrooms, p.bathrooms, p.property_type, p.status,
		p.built_status, p.source, p.source_url, p.thumbnail,
		c.name AS city_name, a.name AS area_name, cat.name AS category_name`

const listingJoins = `
	FROM properties p
	LEFT JOIN cities c ON p.city_id = c.id
	LEFT JOIN areas a ON p.area_id = a.id
	LEFT JOIN categories cat ON p.category_id = cat.id`

// whereBuilder accumulates AND-ed conditions with positional $N placeholders
type whereBuilder struct {
	clauses  []string
	args     []interface{}
	argIndex int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes LIKE wildcards in s match literally
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func newWhereBuilder(base ...string) *whereBuilder {
	return &whereBuilder{clauses: append([]string{}, base...), argIndex: 1}
}

// add appends a condition; each %s in format receives the next placeholder
func (w *whereBuilder) add(format string, args ...interface{}) {
	placeholders := make([]interface{}, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", w.argIndex)
		w.argIndex++
	}
	w.clauses = append(w.clauses, fmt.Sprintf(format, placeholders...))
	w.args = append(w.args, args...)
}

func (w *whereBuilder) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) next() string {
	p := fmt.Sprintf("$%d", w.argIndex)
	w.argIndex++
	return p
}

func (w *whereBuilder) String() string {
	return strings.Join(w.clauses, " AND ")
}

// buildListingQuery renders one tier's read: the base filter, every constraint
// set on q.Filter, the exclusion list, price ordering and the limit.
func buildListingQuery(q model.ListingQuery) (string, []interface{}) {
	w := newWhereBuilder("p.status = 'active'", "p.price > 0")
	f := q.Filter

	if f.Category != "" {
		w.add("LOWER(cat.name) = %s", strings.ToLower(strings.TrimSpace(f.Category)))
	}
	if f.Beds != nil {
		w.add("p.bedrooms = %s", *f.Beds)
	}
	if f.MaxPrice != nil && *f.MaxPrice > 0 {
		w.add("p.price <= %s", *f.MaxPrice)
	}
	if f.MinPrice != nil && *f.MinPrice > 0 {
		w.add("p.price >= %s", *f.MinPrice)
	}
	if city := strings.ToLower(strings.TrimSpace(f.City)); city != "" {
		w.add(`(LOWER(c.name) = %s OR LOWER(c.name) LIKE %s ESCAPE '\')`, city, escapeLike(city)+"%")
	}
	if area := strings.ToLower(strings.TrimSpace(f.Area)); area != "" {
		pattern := "%" + escapeLike(area) + "%"
		w.add(`(LOWER(a.name) LIKE %s ESCAPE '\' OR LOWER(p.location) LIKE %s ESCAPE '\')`, pattern, pattern)
	}

	if f.Type() == model.PropertyTypeRent {
		w.raw(fmt.Sprintf("(p.property_type = 'rent' OR (p.property_type = 'buy' AND p.price < %d))", rentPriceCeiling))
	} else {
		w.raw(fmt.Sprintf("(p.property_type = 'buy' OR (p.property_type = 'rent' AND p.price > %d))", buyPriceFloor))
	}

	if f.Residential() {
		names := make([]string, len(model.ResidentialCategories))
		for i, c := range model.ResidentialCategories {
			names[i] = "'" + strings.ReplaceAll(c, "'", "''") + "'"
		}
		w.raw("cat.name IN (" + strings.Join(names, ", ") + ")")
	}

	if len(q.ExcludeIDs) > 0 {
		placeholders := make([]string, len(q.ExcludeIDs))
		for i, id := range q.ExcludeIDs {
			placeholders[i] = w.next()
			w.args = append(w.args, id)
		}
		w.raw("p.id NOT IN (" + strings.Join(placeholders, ", ") + ")")
	}

	limit := w.next()
	w.args = append(w.args, q.Limit)

	query := fmt.Sprintf("SELECT %s %s\n\tWHERE %s\n\tORDER BY p.price ASC\n\tLIMIT %s",
		listingColumns, listingJoins, w.String(), limit)
	return query, w.args
}

// buildMarketQuery renders the aggregate over active, priced listings in scope
func buildMarketQuery(scope model.StatsScope) (string, []interface{}) {
	w := newWhereBuilder("p.price > 0", "p.status = 'active'")

	if area := strings.ToLower(strings.TrimSpace(scope.Area)); area != "" {
		pattern := "%" + escapeLike(area) + "%"
		w.add(`(LOWER(p.location) LIKE %s ESCAPE '\' OR LOWER(a.name) LIKE %s ESCAPE '\')`, pattern, pattern)
	}
	if city := strings.ToLower(strings.TrimSpace(scope.City)); city != "" {
		w.add("LOWER(c.name) = %s", city)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		MIN(p.price)::float8 AS min_price,
		MAX(p.price)::float8 AS max_price,
		AVG(p.price)::float8 AS avg_price,
		SUM(p.price)::float8 AS total_valuation
	FROM properties p
	LEFT JOIN areas a ON p.area_id = a.id
	LEFT JOIN cities c ON p.city_id = c.id
	WHERE %s`, w.String())
	return query, w.args
}

const cityBreakdownQuery = `
	SELECT c.name AS name, COUNT(*) AS count,
		AVG(p.price)::float8 AS avg_price, MIN(p.price)::float8 AS min_price, MAX(p.price)::float8 AS max_price
	FROM properties p
	JOIN cities c ON p.city_id = c.id
	WHERE p.status = 'active' AND p.price > 0
	GROUP BY c.name
	ORDER BY count DESC
	LIMIT $1`

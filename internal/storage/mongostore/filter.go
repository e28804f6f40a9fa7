package mongostore

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"txagg/internal/core"
)

// transactionFilter translates a filter into a MongoDB query document.
func transactionFilter(vis core.Visibility, f core.TransactionFilter) bson.D {
	d := bson.D{}
	if vis == core.ExcludeDeleted {
		d = append(d, bson.E{Key: "is_deleted", Value: false})
	}
	if f.ID != "" {
		d = append(d, bson.E{Key: "_id", Value: f.ID})
	}
	if f.CustomerID != "" {
		d = append(d, bson.E{Key: "customer_id", Value: f.CustomerID})
	}
	if f.CustomerNameContains != "" {
		d = append(d, bson.E{Key: "customer_name", Value: containsRegex(f.CustomerNameContains)})
	}
	if r := rangeDoc(f.MinAmount != nil, f.MaxAmount != nil); r != nil {
		if f.MinAmount != nil {
			r = append(r, bson.E{Key: "$gte", Value: f.MinAmount.Cents})
		}
		if f.MaxAmount != nil {
			r = append(r, bson.E{Key: "$lte", Value: f.MaxAmount.Cents})
		}
		d = append(d, bson.E{Key: "amount_cents", Value: r})
	}
	if r := rangeDoc(f.From != nil, f.To != nil); r != nil {
		if f.From != nil {
			r = append(r, bson.E{Key: "$gte", Value: f.From.UTC()})
		}
		if f.To != nil {
			r = append(r, bson.E{Key: "$lte", Value: f.To.UTC()})
		}
		d = append(d, bson.E{Key: "transaction_date", Value: r})
	}
	if f.DescriptionContains != "" {
		d = append(d, bson.E{Key: "description", Value: containsRegex(f.DescriptionContains)})
	}
	switch {
	case f.Uncategorized && f.Category != "":
		// no row has both an empty and a named category
		d = append(d, bson.E{Key: "category", Value: bson.D{{Key: "$in", Value: bson.A{}}}})
	case f.Uncategorized:
		d = append(d, bson.E{Key: "category", Value: ""})
	case f.Category != "":
		d = append(d, bson.E{Key: "category", Value: f.Category})
	}
	if f.Source != "" {
		d = append(d, bson.E{Key: "source", Value: f.Source})
	}
	if f.Currency != "" {
		d = append(d, bson.E{Key: "currency", Value: f.Currency})
	}
	if f.Type != "" {
		d = append(d, bson.E{Key: "type", Value: string(f.Type)})
	}
	return d
}

func rangeDoc(lower, upper bool) bson.D {
	if !lower && !upper {
		return nil
	}
	return bson.D{}
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func visibilityFilter(vis core.Visibility) bson.D {
	if vis == core.ExcludeDeleted {
		return bson.D{{Key: "is_deleted", Value: false}}
	}
	return bson.D{}
}

package main

import (
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/export"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
)

func writeSpreadsheet(dir string, rets []retailers.Retailer, collectors []*aggregate.Collector, entries []models.CatalogEntry, elapsed time.Duration) (string, error) {
	columns := make([]aggregate.Column, len(rets))
	for i, r := range rets {
		columns[i] = aggregate.Column{Title: r.Column, Reduced: collectors[i].Reduce()}
	}

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key()
	}

	return export.WriteXLSX(dir, aggregate.Table(keys, columns, elapsed), time.Now())
}

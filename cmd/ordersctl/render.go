package main

import (
	"fmt"
	"io"
	"strconv"

	"foodorder/internal/domain/model"
	"foodorder/internal/repository"

	"github.com/olekukonko/tablewriter"
)

func auditFilter(cmd command) repository.AuditLogFilter {
	rt := model.AuditResourceOrder
	return repository.AuditLogFilter{
		ResourceType: &rt,
		ResourceID:   &cmd.id,
		Limit:        cmd.limit,
	}
}

// 金額はセント→ドル表記
func money(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func renderStats(w io.Writer, storeID int64, s repository.StoreOrderStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("store", "metric", "value")

	id := strconv.FormatInt(storeID, 10)
	rows := [][]string{
		{id, "total orders", strconv.FormatInt(s.TotalOrders, 10)},
		{id, "total revenue", money(s.TotalRevenueCents)},
		{id, "average order", money(int64(s.AverageOrderCents))},
		{id, "pending", strconv.FormatInt(s.PendingOrders, 10)},
		{id, "delivered", strconv.FormatInt(s.CompletedOrders, 10)},
		{id, "cancelled", strconv.FormatInt(s.CancelledOrders, 10)},
		{id, "today", strconv.FormatInt(s.TodayOrders, 10)},
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func renderAudit(w io.Writer, logs []model.AuditLog) error {
	table := tablewriter.NewWriter(w)
	table.Header("time", "actor", "action", "before", "after")

	for _, l := range logs {
		actor := l.ActorType
		if l.ActorID != 0 {
			actor += ":" + strconv.FormatInt(l.ActorID, 10)
		}
		if err := table.Append([]string{
			l.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			actor,
			string(l.Action),
			l.BeforeJSON,
			l.AfterJSON,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

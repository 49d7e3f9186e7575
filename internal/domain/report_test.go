package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		From:       "/abs/in",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Src: "/abs/in/b.jpg", Status: StatusDuplicateMoved},
			{Src: "", Status: StatusFailed}, // 合成项（例如 start 失败）
			{Src: "/abs/in/a.jpg", Status: StatusMoved},
			{Src: "/abs/in/c.jpg", Status: StatusSkipped},
			{Src: "/abs/in/d.jpg", Status: StatusNoOp},
		},
	}

	r.Finalize()

	got := []string{r.Items[0].Src, r.Items[1].Src, r.Items[2].Src, r.Items[3].Src, r.Items[4].Src}
	want := []string{"/abs/in/a.jpg", "/abs/in/b.jpg", "/abs/in/c.jpg", "/abs/in/d.jpg", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items 排序不符合契约：%v", got)
		}
	}
	s := r.Summary
	if s.Moved != 1 || s.DuplicateMoved != 1 || s.NoOp != 1 || s.Skipped != 1 || s.Failed != 1 {
		t.Fatalf("summary 统计不正确：%+v", s)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_NilItemsBecomesEmptyArray(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"items\":[]")) {
		t.Fatalf("items 应输出为 []：%s", string(b))
	}
}

package run

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/meta/metatest"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	idx        []int
	srcs       []string
	finished   *domain.RunReport
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnFileDone(idx int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.idx = append(o.idx, idx)
	o.srcs = append(o.srcs, filepath.Base(res.Src))
}

func (o *recordObserver) OnFinish(rr domain.RunReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = &rr
}

func TestExecute_EmitsEventsInScanOrder(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)
	x := metatest.EXIF{DateTimeOriginal: taken}
	metatest.WriteJPEG(t, filepath.Join(eff.From, "b.jpg"), 4, 4, 1, x)
	metatest.WriteJPEG(t, filepath.Join(eff.From, "a.jpg"), 4, 4, 2, x)
	metatest.WriteJPEG(t, filepath.Join(eff.From, "z", "c.jpg"), 4, 4, 3, x)

	obs := &recordObserver{}
	rr := execute(t, context.Background(), eff, obs)

	if obs.startCalls != 1 {
		t.Fatalf("OnStart 应调用 1 次，实际 %d", obs.startCalls)
	}
	if want := []int{1, 2, 3}; !reflect.DeepEqual(obs.idx, want) {
		t.Fatalf("idx 序列不符合预期：%v", obs.idx)
	}
	if want := []string{"a.jpg", "b.jpg", "c.jpg"}; !reflect.DeepEqual(obs.srcs, want) {
		t.Fatalf("事件顺序应与扫描顺序一致：%v", obs.srcs)
	}
	if obs.finished == nil || !reflect.DeepEqual(obs.finished.Summary, rr.Summary) {
		t.Fatalf("OnFinish 应收到定稿后的 report：%+v", obs.finished)
	}
}

func TestExecute_FatalStillCallsOnFinish(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)

	obs := &recordObserver{}
	_ = execute(t, context.Background(), eff, obs)
	if obs.startCalls != 1 || obs.finished == nil || len(obs.idx) != 0 {
		t.Fatalf("致命错误时仍应发出 OnStart/OnFinish：%+v", obs)
	}
	if obs.finished.Summary.Failed != 1 {
		t.Fatalf("期望 1 条失败：%+v", obs.finished.Summary)
	}
}

package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/fsx"
	"github.com/John-Robertt/photiso/internal/infra/hashx"
)

// ErrNoSuchAction 表示账本中没有要撤销的记录。
var ErrNoSuchAction = errors.New("没有可撤销的动作")

// Revert 对一条账本记录执行逆操作（不修改账本与导航器）。
//
//   - move：把文件从 To 不覆盖地移回 From
//   - copy：删除 To 处的副本（副本内容已与源不同时拒绝）
//   - duplicate_moved：不支持撤销
func Revert(item domain.ActionHistoryItem) error {
	if item.Outcome == domain.OutcomeDuplicateMoved {
		return domain.E(domain.KindUnsupportedUndo, item.To, errors.New("重复照片的放置不可撤销"))
	}

	switch item.Kind {
	case domain.ActionMove:
		if err := fsx.MoveNoOverwrite(item.To, item.From); err != nil {
			if errors.Is(err, os.ErrExist) {
				return domain.E(domain.KindDestinationExists, item.From, err)
			}
			return domain.E(domain.KindIOError, item.To, err)
		}
		return nil
	case domain.ActionCopy:
		ok, err := fsx.Exists(item.From)
		if err != nil {
			return domain.E(domain.KindIOError, item.From, err)
		}
		if !ok {
			// 源已不在：把副本移回去等价于恢复原状。
			if err := fsx.MoveNoOverwrite(item.To, item.From); err != nil {
				return domain.E(domain.KindIOError, item.To, err)
			}
			return nil
		}
		_, same, err := hashx.SameContent(item.From, item.To)
		if err != nil {
			return domain.E(domain.KindIOError, item.To, err)
		}
		if !same {
			return domain.E(domain.KindIOError, item.To, errors.New("副本内容已变化，拒绝删除"))
		}
		if err := os.Remove(item.To); err != nil {
			return domain.E(domain.KindIOError, item.To, err)
		}
		return nil
	default:
		return fmt.Errorf("未知动作类型：%q", item.Kind)
	}
}

package infra

import (
	"os"
	"time"

	"github.com/pyama86/ticketbot/domain/model"
)

type Datastore interface {
	// 次のチケット番号を採番する
	NextTicketNumber(guildID string) (uint, error)
	// チケットを保存する(upsert)
	SaveTicket(*model.Ticket) error
	// チャンネルIDでチケットを取得する。存在しなければ nil
	GetTicket(channelID string) (*model.Ticket, error)
	// ギルド内のオープンなチケットを取得する
	GetOpenTickets(guildID string) ([]model.Ticket, error)

	// 自動クローズタスクを保存する(upsert)
	SaveAutocloseTask(*model.AutocloseTask) error
	// 自動クローズタスクを取得する。存在しなければ nil
	GetAutocloseTask(channelID string, kind model.TaskKind) (*model.AutocloseTask, error)
	// 自動クローズタスクを削除する。存在しなくてもエラーにしない
	DeleteAutocloseTask(channelID string, kind model.TaskKind) error
	// 全ての自動クローズタスクを取得する(再起動時の復元用)
	GetAutocloseTasks() ([]model.AutocloseTask, error)
}

func NewDatastore() (Datastore, error) {
	if os.Getenv("DB_DRIVER") == "dynamodb" {
		return NewDynamoDB()
	}
	return NewDataBase()
}

func timeNow() time.Time {
	loc, err := time.LoadLocation(os.Getenv("TIMEZONE"))
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

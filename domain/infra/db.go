package infra

import (
	"fmt"
	"os"
	"path"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/ticketbot/domain/model"
)

type DataBase struct {
	db *gorm.DB
}

func NewDataBase() (*DataBase, error) {
	dbpath := "./db/ticketbot.db"
	if os.Getenv("DB_PATH") != "" {
		dbpath = os.Getenv("DB_PATH")
	}
	if !path.IsAbs(dbpath) {
		dbpath = path.Join(os.Getenv("PWD"), dbpath)
	}
	return OpenDataBase(dbpath)
}

func OpenDataBase(dbpath string) (*DataBase, error) {
	db, err := gorm.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Ticket{}, &model.AutocloseTask{}, &model.TicketSequence{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("AutoMigrate failed: %w", err)
	}
	return &DataBase{db: db}, nil
}

func (d *DataBase) Close() error {
	return d.db.Close()
}

func (d *DataBase) NextTicketNumber(guildID string) (uint, error) {
	seq := &model.TicketSequence{GuildID: guildID, CreatedAt: timeNow()}
	if err := d.db.Create(seq).Error; err != nil {
		return 0, err
	}
	return seq.ID, nil
}

func (d *DataBase) SaveTicket(ticket *model.Ticket) error {
	return d.db.Save(ticket).Error
}

func (d *DataBase) GetTicket(channelID string) (*model.Ticket, error) {
	var ticket model.Ticket
	err := d.db.Where("channel_id = ?", channelID).First(&ticket).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DataBase) GetOpenTickets(guildID string) ([]model.Ticket, error) {
	var tickets []model.Ticket
	err := d.db.Where("guild_id = ? AND status = ?", guildID, model.TicketOpen).Order("number asc").Find(&tickets).Error
	return tickets, err
}

func (d *DataBase) SaveAutocloseTask(task *model.AutocloseTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = timeNow()
	}
	return d.db.Save(task).Error
}

func (d *DataBase) GetAutocloseTask(channelID string, kind model.TaskKind) (*model.AutocloseTask, error) {
	var task model.AutocloseTask
	err := d.db.Where("channel_id = ? AND kind = ?", channelID, kind).First(&task).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (d *DataBase) DeleteAutocloseTask(channelID string, kind model.TaskKind) error {
	return d.db.Where("channel_id = ? AND kind = ?", channelID, kind).Delete(&model.AutocloseTask{}).Error
}

func (d *DataBase) GetAutocloseTasks() ([]model.AutocloseTask, error) {
	var tasks []model.AutocloseTask
	err := d.db.Order("fire_at asc").Find(&tasks).Error
	return tasks, err
}

package postgres

import (
	"context"

	"room-chat/internal/models"

	"gorm.io/gorm"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db}
}

func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *RoomRepository) FindByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Preload("Users").First(&room, "id = ?", id).Error
	return &room, err
}

func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).Preload("Users").Order("name").Find(&rooms).Error
	return rooms, err
}

func (r *RoomRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Room{}, "id = ?", id).Error
}

// AddMember persists room membership. Idempotent: adding an existing member
// is a no-op so concurrent joins cannot violate the unique pair.
func (r *RoomRepository) AddMember(ctx context.Context, roomID, userID uint) error {
	var count int64
	err := r.db.WithContext(ctx).Table("room_members").
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("INSERT INTO room_members (room_id, user_id) VALUES (?, ?)", roomID, userID).Error
}

// RemoveMember is idempotent: removing a non-member succeeds.
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	return r.db.WithContext(ctx).
		Exec("DELETE FROM room_members WHERE room_id = ? AND user_id = ?", roomID, userID).Error
}

func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("room_members").
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

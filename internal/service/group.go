package service

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// GroupService 封装群组相关的业务逻辑,成员表供分发引擎解析接收者。
type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

// Create 创建群组,群主自动成为 owner 成员,其余成员以 member 身份加入。
func (s *GroupService) Create(name string, ownerID uint, memberIDs []uint) (*models.Group, error) {
	group := models.Group{Name: name, OwnerID: ownerID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		members := []models.GroupMember{{GroupID: group.ID, UserID: ownerID, Role: "owner"}}
		for _, uid := range memberIDs {
			if uid == ownerID {
				continue
			}
			members = append(members, models.GroupMember{GroupID: group.ID, UserID: uid, Role: "member"})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// AddMember 把用户加入群组,重复加入是幂等操作。
func (s *GroupService) AddMember(groupID, userID uint, role string) error {
	var group models.Group
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}
	if role == "" {
		role = "member"
	}
	m := models.GroupMember{GroupID: groupID, UserID: userID, Role: role}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

// Members 返回群组全部成员。
func (s *GroupService) Members(groupID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := s.db.Where("group_id = ?", groupID).Find(&members).Error
	return members, err
}

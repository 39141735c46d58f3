package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// DemoBranches are the branches created by SeedDirectory.
var DemoBranches = []Branch{
	{ID: "branch-downtown", Name: "Downtown Dojo"},
	{ID: "branch-riverside", Name: "Riverside Dojo"},
}

var demoUsers = []User{
	{ID: "superadmin-1", Name: "Grace Park", Role: model.RoleSuperadmin},
	{ID: "manager-downtown", Name: "Daniel Okafor", Role: model.RoleBranchManager, BranchID: "branch-downtown"},
	{ID: "manager-riverside", Name: "Mira Sato", Role: model.RoleBranchManager, BranchID: "branch-riverside"},
	{ID: "coach-downtown-1", Name: "Luis Romero", Role: model.RoleCoach, BranchID: "branch-downtown"},
	{ID: "coach-downtown-2", Name: "Aiko Tanaka", Role: model.RoleCoach, BranchID: "branch-downtown"},
	{ID: "coach-riverside-1", Name: "Samir Haddad", Role: model.RoleCoach, BranchID: "branch-riverside"},
	{ID: "student-downtown-1", Name: "Priya Nair", Role: model.RoleStudent, BranchID: "branch-downtown"},
	{ID: "student-downtown-2", Name: "Tom Becker", Role: model.RoleStudent, BranchID: "branch-downtown"},
	{ID: "student-riverside-1", Name: "Elena Petrova", Role: model.RoleStudent, BranchID: "branch-riverside"},
}

// SeedDirectory fills d with the demo academy.
func SeedDirectory(d *Directory) error {
	for _, b := range DemoBranches {
		d.AddBranch(b)
	}
	for _, u := range demoUsers {
		u.Email = strings.ReplaceAll(strings.ToLower(u.Name), " ", ".") + "@academy.test"
		if err := d.AddUser(u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}

// SeedMessages sends a short demo exchange between seeded users.
func SeedMessages(ctx context.Context, d *Directory, s *MessageService) error {
	student, _ := d.User("student-downtown-1")
	coach, _ := d.User("coach-downtown-1")
	manager, _ := d.User("manager-downtown")

	first, err := s.Send(ctx, student, &model.SendMessageRequest{
		RecipientID:   coach.ID,
		RecipientType: model.RoleCoach,
		Subject:       "Belt grading",
		Content:       "Am I ready for the blue belt grading next month?",
	})
	if err != nil {
		return fmt.Errorf("seed first message: %w", err)
	}

	_, err = s.Send(ctx, coach, &model.SendMessageRequest{
		RecipientID:      student.ID,
		RecipientType:    model.RoleStudent,
		Subject:          "Belt grading",
		Content:          "Two more sparring sessions and you are ready.",
		ReplyToMessageID: first.MessageID,
	})
	if err != nil {
		return fmt.Errorf("seed reply: %w", err)
	}

	_, err = s.Send(ctx, manager, &model.SendMessageRequest{
		RecipientID:   coach.ID,
		RecipientType: model.RoleCoach,
		Subject:       "Saturday schedule",
		Content:       "Please cover the 10am kids class this Saturday.",
		Priority:      model.PriorityHigh,
	})
	if err != nil {
		return fmt.Errorf("seed manager message: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"payam-chat/config"
	"payam-chat/internal/proxy"
	"payam-chat/internal/repository"
	"payam-chat/internal/services"
	"payam-chat/pkg/database"
	"payam-chat/pkg/logger"
)

const usage = `
Payam Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply all pending migrations
  down        Roll back the most recent migration
  status      Show migration status and core table counts
  seed-dev    Register development users with a sample conversation

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go seed-dev
`

var coreTables = []string{"users", "conversations", "messages", "groups", "group_members", "group_messages", "message_logs"}

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	ctx := context.Background()

	cfg := config.LoadConfig()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		log.Println("🚀 Running migrations UP...")
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Migrations completed successfully!")
	case "down":
		log.Println("⬇️  Rolling back the last migration...")
		if err := database.Rollback(ctx, db); err != nil {
			log.Fatalf("❌ Rollback failed: %v", err)
		}
		log.Println("✅ Rollback completed successfully!")
	case "status":
		showStatus(ctx, db)
	case "seed-dev":
		seedDevelopment(ctx, cfg, db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus(ctx context.Context, db *sql.DB) {
	if err := database.Status(ctx, db); err != nil {
		log.Printf("⚠️  Could not read migration status: %v", err)
	}
	for _, table := range coreTables {
		exists, err := database.TableExists(ctx, db, table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("❌ Table %-16s does not exist", table)
			continue
		}
		count, _ := database.TableCount(ctx, db, table)
		log.Printf("✅ Table %-16s exists (%d rows)", table, count)
	}

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Printf("⚠️  Health check warning: %v", err)
	} else {
		log.Println("✅ Health check: PASSED")
	}
}

type devUser struct {
	name  string
	phone string
}

var devUsers = []devUser{
	{name: "Ali", phone: "09120000001"},
	{name: "Sara", phone: "09120000002"},
	{name: "Reza", phone: "09120000003"},
}

// seedDevelopment goes through the services so seeded rows obey the same
// rules as real traffic. Running it twice reuses the same identities.
func seedDevelopment(ctx context.Context, cfg *config.Config, db *sql.DB) {
	log.Println("🌱 Seeding database (development mode)...")

	l := logger.New(cfg.AppEnv)
	clock := services.Clock(services.SystemClock)
	repos := repository.NewPostgresManager()
	access := proxy.NewAccessControl(repos.Conversations(db), repos.Groups(db))
	eventsPub := services.NewEventPublisher(nil, l)

	identity := services.NewIdentityService(db, repos, nil, clock, l)
	conversations := services.NewConversationService(db, repos, access, clock, l)
	messages := services.NewMessageService(db, repos, access, eventsPub, clock, l)
	tracker := services.NewDeliveryTracker(db, repos, access, eventsPub, clock, l)
	groups := services.NewGroupService(db, repos, access, tracker, eventsPub, clock, l)

	ids := make([]string, 0, len(devUsers))
	for _, du := range devUsers {
		u, err := identity.Register(ctx, services.RegisterInput{DisplayName: du.name, PhoneNumber: du.phone, Password: "password123"})
		if err != nil {
			log.Fatalf("❌ Registering %s failed: %v", du.name, err)
		}
		log.Printf("   - %s: %s", u.DisplayName, u.PublicID)
		ids = append(ids, u.PublicID)
	}

	conv, err := conversations.ResolveOrCreate(ctx, ids[0], ids[1])
	if err != nil {
		log.Fatalf("❌ Conversation failed: %v", err)
	}
	for _, m := range []services.AppendInput{
		{ConversationID: conv.ID, SenderID: ids[0], Content: "Salam Sara!"},
		{ConversationID: conv.ID, SenderID: ids[1], Content: "Salam Ali, chetori?"},
	} {
		if _, err := messages.Append(ctx, m); err != nil {
			log.Fatalf("❌ Message failed: %v", err)
		}
	}

	g, err := groups.Create(ctx, ids[0], "Dev Team", "seeded group")
	if err != nil {
		log.Fatalf("❌ Group failed: %v", err)
	}
	for _, id := range ids[1:] {
		if _, err := groups.AddMember(ctx, g.ID, ids[0], id); err != nil {
			log.Printf("⚠️  Adding %s to group: %v", id, err)
		}
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Users: %d", len(ids))
	log.Printf("   - Conversation: %s", conv.ID)
	log.Printf("   - Group: %s (%s)", g.Name, g.PublicID)
	log.Println("✅ Development seeding completed!")
}

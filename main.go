package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	waClient    *whatsmeow.Client
	container   *sqlstore.Container
	transport   *WATransport
	rdb         *redis.Client
	mongoClient *mongo.Client
)

func main() {
	godotenv.Load()
	cfg = loadConfig()

	fmt.Println("════════════════════════════════════")
	fmt.Println("🚀 " + BOT_NAME + " | STARTING")
	fmt.Println("════════════════════════════════════")

	store := openStore()
	connectMongo()

	var mediaCol *mongo.Collection
	if mongoClient != nil {
		mediaCol = mongoClient.Database("moviestorm").Collection("media_cache")
	}
	mediaCache = NewMediaCache(mediaCol)
	auditLog = NewAuditLog(mongoClient)

	// 🐘 Postgres session store for WhatsApp
	if cfg.DatabaseURL == "" {
		log.Fatal("❌ FATAL ERROR: DATABASE_URL environment variable is missing!")
	}
	fmt.Println("🐘 [DATABASE] Connecting to PostgreSQL...")
	rawDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to open Postgres connection: %v", err)
	}
	rawDB.SetMaxOpenConns(20)
	rawDB.SetMaxIdleConns(5)
	rawDB.SetConnMaxLifetime(30 * time.Minute)

	dbLog := waLog.Stdout("Database", "ERROR", true)
	container = sqlstore.NewWithDB(rawDB, "postgres", dbLog)
	if err := container.Upgrade(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize database tables: %v", err)
	}
	fmt.Println("✅ [DATABASE] Tables verified/created successfully!")

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		log.Fatalf("❌ No device store: %v", err)
	}
	waClient = whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))

	// 🧩 Core wiring
	normalizer = NewNormalizer(geminiComplete)
	catalog = NewCatalog(store)
	sessions = NewSessionStore(SessionTTL)
	records = NewDeliveryRecords()
	transport = NewWATransport(waClient, mediaCache)
	deletions = NewDeletionScheduler(transport, records)
	broker = NewBroker(catalog, sessions, transport, records, deletions, DeleteDelay)

	access = NewAccessStore(store)
	verified = NewVerifiedSet(store)
	wallet = NewWallet(store)
	streaks = NewStreakTracker(store)
	referrals = NewReferralBook(store)
	redeems = NewRedeemBook(store)
	withdrawals = NewWithdrawBook(store)

	fmt.Printf("🎬 [CATALOG] %d titles loaded\n", catalog.Len())
	fmt.Printf("🧠 [AI] %d Gemini keys available\n", getTotalKeysCount())

	registerHandlers(waClient)
	connectWhatsApp()

	// ⏱️ housekeeping: expired selection sessions
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessions.SweepExpired(time.Now())
		}
	}()

	startLeaderboardLoop(announceLeaderboard)
	startWebServer(cfg.Port)

	fmt.Println("✅ " + BOT_NAME + " is ready!")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("\n🛑 Shutting down system...")
	deletions.CancelAll()
	if waClient != nil {
		waClient.Disconnect()
	}
	if mongoClient != nil {
		mongoClient.Disconnect(context.Background())
		fmt.Println("🍃 MongoDB Disconnected")
	}
	if rdb != nil {
		rdb.Close()
	}
	fmt.Println("👋 Goodbye!")
}

// openStore prefers Redis and falls back to JSON files on disk.
func openStore() Store {
	if cfg.RedisURL != "" {
		fmt.Println("📡 [REDIS] Connecting to Redis Cloud...")
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fmt.Println("❌ [REDIS] Bad URL:", err)
		} else {
			rdb = redis.NewClient(opt)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				fmt.Println("❌ [REDIS] Ping failed:", err)
				rdb = nil
			} else {
				fmt.Println("🚀 [REDIS] Connection Established!")
				return NewRedisStore(rdb)
			}
		}
	}
	fmt.Println("💾 [STORE] Using JSON files in:", cfg.DataDir)
	fs, err := NewFileStore(cfg.DataDir)
	if err != nil {
		fmt.Println("❌ [STORE] Cannot create data dir:", err)
		os.Exit(1)
	}
	return fs
}

func connectMongo() {
	if cfg.MongoURL == "" {
		fmt.Println("⚠️ MONGO_URL not found! Media cache and audit log stay in RAM.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		fmt.Println("❌ MongoDB Connection Error:", err)
		return
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		fmt.Println("❌ MongoDB Ping Failed:", err)
		return
	}
	mongoClient = client
	fmt.Println("🍃 [MONGODB] Connected!")
}

func connectWhatsApp() {
	if waClient.Store.ID == nil {
		fmt.Println("📱 [PAIRING] No session found. Scan the QR below or use /api/pair.")
		qrChan, _ := waClient.GetQRChannel(context.Background())
		if err := waClient.Connect(); err != nil {
			fmt.Println("❌ [WA] Connect failed:", err)
			os.Exit(1)
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					fmt.Println("📷 [QR]", evt.Code)
					broadcastWS(map[string]interface{}{"event": "qr", "code": evt.Code})
				} else {
					fmt.Println("🔑 [LOGIN]", evt.Event)
				}
			}
		}()
	} else {
		if err := waClient.Connect(); err != nil {
			fmt.Println("❌ [WA] Connect failed:", err)
			os.Exit(1)
		}
		fmt.Println("📡 [WA] Session restored, connected!")
	}
}

func announceLeaderboard(winners []string, rows []LeaderboardRow) {
	if waClient == nil {
		return
	}
	body := fmt.Sprintf("🏆 *Daily Leaderboard*\n%d users rewarded +%d coins each\n\n", len(winners), LeaderboardCoins)
	for i, row := range rows {
		body += fmt.Sprintf("%d. %s — %d searches\n", i+1, maskJID(row.UserID), row.Searches)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for _, winner := range winners {
		if jid, err := types.ParseJID(winner); err == nil {
			transport.SendText(ctx, jid, fmt.Sprintf("🏆 *You are in today's Top 10!* +%d coins 🎉", LeaderboardCoins))
		}
	}
	if cfg.AdminJID != "" {
		if jid, err := types.ParseJID(cfg.AdminJID); err == nil {
			transport.SendText(ctx, jid, body)
		}
	}
}

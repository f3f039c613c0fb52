package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/cache"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
)

const (
	CacheKeyAccountsTotal  = "statistics:accounts:total"
	CacheKeySnapshotsDaily = "statistics:snapshots:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers          = "statistics:users:total"
	CacheExpiration        = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on dashboards
type StatisticsData struct {
	TodaySnapshots int
	TotalUsers     int
	TotalAccounts  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cache refresh interval has elapsed
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when it is stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded call to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	// Count total social accounts
	var totalAccounts int64
	if err := db.Model(&models.SocialAccount{}).Count(&totalAccounts).Error; err != nil {
		log.Printf("Error counting total accounts: %v", err)
		return err
	}

	// Count today's metrics snapshots
	var todaySnapshots int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.MetricsSnapshot{}).Where("captured_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todaySnapshots).Error; err != nil {
		log.Printf("Error counting today's snapshots: %v", err)
		return err
	}

	// Count total users
	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	// Store values in cache
	if err := cache.Set(CacheKeyAccountsTotal, strconv.FormatInt(totalAccounts, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total accounts: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeySnapshotsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todaySnapshots, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's snapshots: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// GetTotalAccounts returns the total number of social accounts from cache or database
func GetTotalAccounts() int {
	val, err := cache.Get(CacheKeyAccountsTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.SocialAccount{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total accounts: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyAccountsTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total accounts: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodaySnapshots returns the number of snapshots captured today from cache or database
func GetTodaySnapshots() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeySnapshotsDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.MetricsSnapshot{}).Where("captured_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's snapshots: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's snapshots: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodaySnapshots: GetTodaySnapshots(),
		TotalUsers:     GetTotalUsers(),
		TotalAccounts:  GetTotalAccounts(),
	}
}

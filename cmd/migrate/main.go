package main

import (
	"flag"
	"fmt"
	"log"

	"camwatch/internal/repository/sqlite"
	"camwatch/internal/storage"
)

// migrate rebuilds the history index from the artifacts on disk. Entries
// already in the index are overwritten with the metadata in their filename.
func main() {
	imagesDir := flag.String("images", "detections", "Directory containing detection images")
	dbPath := flag.String("db", "data/camwatch.db", "Database path")
	flag.Parse()

	fmt.Printf("Indexing images from %s into database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	images, err := storage.NewStore(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to open images directory: %v", err)
	}

	entries, skipped, err := images.Scan()
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}
	for _, name := range skipped {
		log.Printf("⚠️  Skipping %s: not a detection artifact", name)
	}

	if len(entries) == 0 {
		fmt.Println("No images found to index")
		return
	}

	repo := sqlite.NewHistoryRepository(db)
	failed := 0
	for i := range entries {
		if err := repo.Insert(&entries[i]); err != nil {
			log.Printf("⚠️  Failed to index %s: %v", entries[i].ImagePath, err)
			failed++
		}
	}

	fmt.Printf("✅ Indexed %d images\n", len(entries)-failed)
	if len(skipped)+failed > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid format or errors)\n", len(skipped)+failed)
	}

	total, err := repo.Count()
	if err == nil {
		fmt.Printf("\n📊 History entries in database: %d\n", total)
	}
}

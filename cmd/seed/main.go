package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/verdemarket/engage-backend/config"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

// Imports a catalog workbook. Expects two sheets:
//
//	Vendors:  id | name | category | region
//	Products: id | vendor_id | name | description | category | price | rating | image_url
//
// Rows run through the orchestrator's ingestion path, so re-running the
// import against the same file is safe.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	vendors, products, err := readCatalogFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Vendors to import: %d, products to import: %d\n", len(vendors), len(products))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	gormDB := db.GetDB()
	tagRepo := repository.NewTagRepository(gormDB)
	tagService := service.NewTagService(tagRepo)
	orchestrator := service.NewOrchestratorService(
		repository.NewProductRepository(gormDB),
		repository.NewVendorRepository(gormDB),
		repository.NewThreadRepository(gormDB),
		repository.NewCustomerRepository(gormDB),
		tagRepo,
		tagService,
		nil, // QR issuance not needed for catalog import
		nil, // nor the customer pipeline
		nil,
		model.DefaultScoring(),
	)

	result, err := orchestrator.IngestCatalog(vendors, products)
	if err != nil {
		log.Fatal("Failed to ingest catalog:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Vendors: %d, products: %d, auto-tagged: %d\n", result.Vendors, result.Products, result.Tagged)
}

func readCatalogFromXLSX(filePath string) ([]model.Vendor, []model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	vendors, err := readVendorSheet(f)
	if err != nil {
		return nil, nil, err
	}
	products, err := readProductSheet(f)
	if err != nil {
		return nil, nil, err
	}
	return vendors, products, nil
}

func readVendorSheet(f *excelize.File) ([]model.Vendor, error) {
	rows, err := f.GetRows("Vendors")
	if err != nil {
		return nil, fmt.Errorf("failed to read Vendors sheet: %w", err)
	}

	var vendors []model.Vendor
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		vendor := model.Vendor{
			ID:   strings.TrimSpace(row[0]),
			Name: strings.TrimSpace(row[1]),
		}
		if vendor.ID == "" || vendor.Name == "" {
			continue
		}
		if len(row) > 2 {
			vendor.Category = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			vendor.Region = strings.TrimSpace(row[3])
		}
		vendors = append(vendors, vendor)
	}
	return vendors, nil
}

func readProductSheet(f *excelize.File) ([]model.Product, error) {
	rows, err := f.GetRows("Products")
	if err != nil {
		return nil, fmt.Errorf("failed to read Products sheet: %w", err)
	}

	var products []model.Product
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 6 {
			skipped++
			continue
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		if err != nil {
			skipped++
			continue
		}

		product := model.Product{
			ID:          strings.TrimSpace(row[0]),
			VendorID:    strings.TrimSpace(row[1]),
			Name:        strings.TrimSpace(row[2]),
			Description: strings.TrimSpace(row[3]),
			Category:    strings.TrimSpace(row[4]),
			Price:       price,
		}
		if product.ID == "" || product.VendorID == "" || product.Name == "" {
			skipped++
			continue
		}
		if len(row) > 6 {
			if rating, err := strconv.ParseFloat(strings.TrimSpace(row[6]), 64); err == nil {
				product.Rating = rating
			}
		}
		if len(row) > 7 {
			product.ImageURL = strings.TrimSpace(row[7])
		}
		products = append(products, product)
	}

	if skipped > 0 {
		fmt.Printf("Skipped %d malformed product rows\n", skipped)
	}
	return products, nil
}

package controller

import (
	"errors"
	"fmt"
	"menudash/database"
	"menudash/logger"
	"menudash/model"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxImportSize = 5 << 20

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

func parseFoodID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid food ID format")
		return 0, false
	}
	return uint(id), true
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("food name is required")
	}
	return nil
}

func validatePrice(price float64) error {
	if price < 0 {
		return errors.New("price must not be negative")
	}
	return nil
}

func ListFoods(c *gin.Context) {
	foods := []model.Food{}
	if err := database.DB.Order("id").Find(&foods).Error; err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch foods: %v", err))
		return
	}

	items := make([]model.FoodItem, 0, len(foods))
	for _, f := range foods {
		items = append(items, f.FoodItem)
	}
	c.JSON(http.StatusOK, items)
}

func GetFoodByID(c *gin.Context) {
	id, ok := parseFoodID(c)
	if !ok {
		return
	}

	var food model.Food
	if err := database.DB.First(&food, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, http.StatusNotFound, "Food not found")
		} else {
			abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch food: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, food.FoodItem)
}

func AddFood(c *gin.Context) {
	var input model.FoodInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := validateName(input.Name); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validatePrice(input.Price); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	food := model.Food{FoodItem: model.FoodItem{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Available:   input.Available,
		Image:       input.Image,
	}}
	if err := database.DB.Create(&food).Error; err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to create food: %v", err))
		return
	}

	c.JSON(http.StatusCreated, food.FoodItem)
}

// UpdateFood overwrites only the fields present in the body.
func UpdateFood(c *gin.Context) {
	id, ok := parseFoodID(c)
	if !ok {
		return
	}

	var draft model.EditDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if draft.Name != nil {
		if err := validateName(*draft.Name); err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if draft.Price != nil {
		if err := validatePrice(*draft.Price); err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	tx := database.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			abortWithError(c, http.StatusInternalServerError, "Unexpected error occurred")
		}
	}()

	var food model.Food
	if err := tx.First(&food, id).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, http.StatusNotFound, "Food not found")
		} else {
			abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch food: %v", err))
		}
		return
	}

	food.FoodItem = model.Merge(food.FoodItem, draft)

	if err := tx.Save(&food).Error; err != nil {
		tx.Rollback()
		abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to update food: %v", err))
		return
	}

	if err := tx.Commit().Error; err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Transaction failed: %v", err))
		return
	}

	c.JSON(http.StatusOK, food.FoodItem)
}

func DeleteFood(c *gin.Context) {
	id, ok := parseFoodID(c)
	if !ok {
		return
	}

	res := database.DB.Delete(&model.Food{}, id)
	if res.Error != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to delete food: %v", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		abortWithError(c, http.StatusNotFound, "Food not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// BulkAddFood imports foods from the first sheet of an xlsx upload. The header
// row is skipped; columns are name, description, price, image and an optional
// availability flag that defaults to true.
func BulkAddFood(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Excel file is required")
		return
	}
	if fileHeader.Size > maxImportSize {
		abortWithError(c, http.StatusBadRequest, "Excel file exceeds 5MB limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to open Excel file")
		return
	}
	defer file.Close()

	xl, err := excelize.OpenReader(file)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to parse Excel file")
		return
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		abortWithError(c, http.StatusBadRequest, "Excel file has no sheets")
		return
	}
	rows, err := xl.GetRows(sheets[0])
	if err != nil || len(rows) < 2 {
		abortWithError(c, http.StatusBadRequest, "Excel must have at least one row of data")
		return
	}

	log := logger.Named("import").With(zap.String("file", fileHeader.Filename))

	var foods []model.Food
	for i, row := range rows[1:] {
		rowNum := i + 2
		food, err := foodFromRow(row)
		if err != nil {
			log.Warn("row skipped", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		foods = append(foods, food)
	}

	if len(foods) == 0 {
		abortWithError(c, http.StatusBadRequest, "No valid rows found")
		return
	}

	if err := database.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&foods).Error
	}); err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to insert foods: %v", err))
		return
	}
	log.Info("foods imported", zap.Int("count", len(foods)))

	items := make([]model.FoodItem, 0, len(foods))
	for _, f := range foods {
		items = append(items, f.FoodItem)
	}
	c.JSON(http.StatusCreated, items)
}

func foodFromRow(row []string) (model.Food, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	if len(row) < 3 {
		return model.Food{}, errors.New("incomplete row")
	}

	name := cell(0)
	if err := validateName(name); err != nil {
		return model.Food{}, err
	}

	price, err := strconv.ParseFloat(cell(2), 64)
	if err != nil {
		return model.Food{}, fmt.Errorf("invalid price %q", cell(2))
	}
	if err := validatePrice(price); err != nil {
		return model.Food{}, err
	}

	available := true
	if v := cell(4); v != "" {
		available, err = strconv.ParseBool(v)
		if err != nil {
			return model.Food{}, fmt.Errorf("invalid availability %q", v)
		}
	}

	return model.Food{FoodItem: model.FoodItem{
		Name:        name,
		Description: cell(1),
		Price:       price,
		Available:   available,
		Image:       cell(3),
	}}, nil
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

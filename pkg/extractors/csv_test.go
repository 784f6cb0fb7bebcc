package extractors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/config"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surveys.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVExtractor_Extract(t *testing.T) {
	content := "ProductId,ProductName,Category,CustomerId,CustomerName,Country,City,SurveyDate,Rating,Sentiment,Comment\n" +
		"1001,Laptop Pro X1,Electronics,42,Jane Smith,Spain,Madrid,2025-03-15,5,87,Great product\n" +
		"2001,Office Chair Deluxe,Furniture,43,Bob Jones,France,Paris,2025-04-01,2,-45,Too stiff\n"

	extractor := NewCSVExtractor(config.CSVSourceConfig{
		Enabled:   true,
		FilePath:  writeTempCSV(t, content),
		Delimiter: ",",
		HasHeader: true,
	}, zap.NewNop())

	opinions, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, opinions, 2)

	first := opinions[0]
	assert.Equal(t, 1001, first.SourceProductID)
	assert.Equal(t, "Laptop Pro X1", first.ProductName)
	assert.Equal(t, "Electronics", first.ProductCategory)
	assert.Equal(t, 42, first.SourceCustomerID)
	assert.Equal(t, "Jane Smith", first.CustomerName)
	assert.Equal(t, "Spain", first.Country)
	assert.Equal(t, "Madrid", first.City)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), first.OpinionDate)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 5, *first.Rating)
	assert.Equal(t, 87, first.SentimentScore)
	assert.Equal(t, "Great product", first.CommentText)

	// Survey rows always carry the internal survey channel.
	assert.Equal(t, "Internal Survey", first.ChannelName)
	assert.Equal(t, "CSV", first.ChannelType)
	assert.Equal(t, "Survey", first.Segment)

	second := opinions[1]
	require.NotNil(t, second.Rating)
	assert.Equal(t, 2, *second.Rating)
	assert.Equal(t, -45, second.SentimentScore)
}

func TestCSVExtractor_NoHeader(t *testing.T) {
	content := "1001,Laptop Pro X1,Electronics,42,Jane Smith,Spain,Madrid,2025-03-15,5,87,Great product\n"

	extractor := NewCSVExtractor(config.CSVSourceConfig{
		FilePath:  writeTempCSV(t, content),
		Delimiter: ",",
		HasHeader: false,
	}, zap.NewNop())

	opinions, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, opinions, 1)
	assert.Equal(t, "Laptop Pro X1", opinions[0].ProductName)
	assert.Equal(t, 87, opinions[0].SentimentScore)
}

func TestCSVExtractor_SemicolonDelimiter(t *testing.T) {
	content := "ProductId;ProductName;Category;CustomerId;CustomerName;Country;City;SurveyDate;Rating;Sentiment;Comment\n" +
		"1001;Laptop Pro X1;Electronics;42;Jane Smith;Spain;Madrid;2025-03-15;5;87;Great product\n"

	extractor := NewCSVExtractor(config.CSVSourceConfig{
		FilePath:  writeTempCSV(t, content),
		Delimiter: ";",
		HasHeader: true,
	}, zap.NewNop())

	opinions, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, opinions, 1)
	assert.Equal(t, 1001, opinions[0].SourceProductID)
}

func TestCSVExtractor_MalformedFieldsMapToZeroValues(t *testing.T) {
	content := "ProductId,ProductName,Category,CustomerId,CustomerName,Country,City,SurveyDate,Rating,Sentiment,Comment\n" +
		"abc,Laptop Pro X1,Electronics,42,Jane Smith,Spain,Madrid,not-a-date,,xyz,\n"

	extractor := NewCSVExtractor(config.CSVSourceConfig{
		FilePath:  writeTempCSV(t, content),
		Delimiter: ",",
		HasHeader: true,
	}, zap.NewNop())

	opinions, err := extractor.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, opinions, 1)

	o := opinions[0]
	assert.Equal(t, 0, o.SourceProductID)
	assert.True(t, o.OpinionDate.IsZero())
	assert.Nil(t, o.Rating)
	assert.Equal(t, 0, o.SentimentScore)
}

func TestCSVExtractor_MissingFile(t *testing.T) {
	extractor := NewCSVExtractor(config.CSVSourceConfig{
		FilePath:  filepath.Join(t.TempDir(), "does-not-exist.csv"),
		Delimiter: ",",
		HasHeader: true,
	}, zap.NewNop())

	opinions, err := extractor.Extract(context.Background())
	assert.Error(t, err)
	assert.Nil(t, opinions)
}

func TestCSVExtractor_Name(t *testing.T) {
	extractor := NewCSVExtractor(config.CSVSourceConfig{Delimiter: ","}, zap.NewNop())
	assert.Equal(t, "csv", extractor.Name())
}

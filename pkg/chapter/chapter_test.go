package chapter

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ChapterSuite struct {
	suite.Suite
}

func TestChapterSuite(t *testing.T) {
	suite.Run(t, new(ChapterSuite))
}

func (s *ChapterSuite) TestNewTrimsTitle() {
	c, err := New(60.5, "  Introduction  ")
	s.NoError(err)
	s.Equal("Introduction", c.Title)
	s.Equal(60.5, c.Timestamp)
}

func (s *ChapterSuite) TestNewRejectsNegativeTimestamp() {
	_, err := New(-1, "Introduction")
	s.Error(err)
}

func (s *ChapterSuite) TestNewRejectsBlankTitle() {
	_, err := New(0, "   ")
	s.Error(err)
}

func (s *ChapterSuite) TestValidateListAcceptsAscendingUnique() {
	s.NoError(ValidateList([]Chapter{
		{Timestamp: 0, Title: "Introduction"},
		{Timestamp: 120.5, Title: "Main Discussion"},
		{Timestamp: 300, Title: "Conclusion"},
	}))
}

func (s *ChapterSuite) TestValidateListRejectsEmpty() {
	s.Error(ValidateList(nil))
}

func (s *ChapterSuite) TestValidateListRejectsDuplicates() {
	err := ValidateList([]Chapter{
		{Timestamp: 0, Title: "A"},
		{Timestamp: 0, Title: "B"},
	})
	s.Error(err)
	s.Contains(err.Error(), "unique")
}

func (s *ChapterSuite) TestValidateListRejectsDescending() {
	err := ValidateList([]Chapter{
		{Timestamp: 120, Title: "A"},
		{Timestamp: 60, Title: "B"},
	})
	s.Error(err)
	s.Contains(err.Error(), "ascending")
}

func (s *ChapterSuite) TestValidateListRejectsInvalidMember() {
	err := ValidateList([]Chapter{
		{Timestamp: 0, Title: "A"},
		{Timestamp: 60, Title: " "},
	})
	s.Error(err)
	s.Contains(err.Error(), "chapter 1")
}

func (s *ChapterSuite) TestFFmpegMetadata() {
	metadata := FFmpegMetadata([]Chapter{
		{Timestamp: 0, Title: "Introduction"},
		{Timestamp: 60.5, Title: "Main Discussion"},
	})

	expected := ";FFMETADATA1\n" +
		"[CHAPTER]\n" +
		"TIMEBASE=1/1000\n" +
		"START=0\n" +
		"END=60500\n" +
		"title=Introduction\n" +
		"[CHAPTER]\n" +
		"TIMEBASE=1/1000\n" +
		"START=60500\n" +
		"END=60500\n" +
		"title=Main Discussion\n"
	s.Equal(expected, metadata)
}

func (s *ChapterSuite) TestFFmpegMetadataEscapesSpecials() {
	metadata := FFmpegMetadata([]Chapter{
		{Timestamp: 0, Title: "Q=A; #notes"},
	})
	s.Contains(metadata, `title=Q\=A\; \#notes`)
}

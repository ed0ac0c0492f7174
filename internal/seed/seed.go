// Package seed loads the demo dataset: the default categories, a handful
// of accounts including one admin, and some starter posts and comments.
package seed

import (
	"context"
	"database/sql"

	"github.com/myopinion/apiserver/internal/store"
	"github.com/myopinion/apiserver/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	username string
	email    string
	password string
	role     types.Role
}

type seedPost struct {
	title    string
	content  string
	author   int // index into users
	category int // index into categories
}

type seedComment struct {
	content string
	post    int // index into posts
	author  int // index into users
}

var categories = []types.Category{
	{Name: "General", Description: "General discussions and random topics"},
	{Name: "Technology", Description: "Tech news, gadgets, and innovations"},
	{Name: "Programming", Description: "Coding tips, tutorials, and help"},
	{Name: "Travel", Description: "Travel experiences and recommendations"},
	{Name: "Food", Description: "Recipes, restaurants, and culinary adventures"},
	{Name: "Music", Description: "Artists, albums, and music discussions"},
	{Name: "Movies", Description: "Film reviews and recommendations"},
	{Name: "Sports", Description: "Sports news and discussions"},
}

var users = []seedUser{
	{"admin", "admin@myopinion.com", "Admin123!", types.RoleAdmin},
	{"john_doe", "john@example.com", "User123!", types.RoleUser},
	{"jane_smith", "jane@example.com", "User123!", types.RoleUser},
	{"mike_wilson", "mike@example.com", "User123!", types.RoleUser},
	{"sarah_jones", "sarah@example.com", "User123!", types.RoleUser},
	{"alex_brown", "alex@example.com", "User123!", types.RoleUser},
}

var posts = []seedPost{
	{
		title:    "Is AI going to replace programmers?",
		content:  "I've been thinking a lot about the future of programming with AI tools becoming so advanced. While these tools are incredibly helpful, I believe they're more like powerful assistants than replacements. What do you think?",
		author:   1,
		category: 1,
	},
	{
		title:    "Best practices for React in 2026",
		content:  "I've been working with React for 5 years now, and I wanted to share some patterns that have really improved my codebase: custom hooks for reusable logic, proper error boundaries, and server state libraries. What are your favorites?",
		author:   2,
		category: 2,
	},
	{
		title:    "Hidden gems in Greece you must visit",
		content:  "Just came back from an amazing trip to Greece! While Santorini and Mykonos are beautiful, I discovered some incredible hidden spots: Milos island, the medieval town of Monemvasia, and the stunning Vikos Gorge.",
		author:   3,
		category: 3,
	},
	{
		title:    "Homemade pasta changed my life",
		content:  "I always thought making fresh pasta was too difficult until I tried it last weekend. With just flour, eggs, and a rolling pin, I made the most delicious tagliatelle! Who else makes their own pasta at home?",
		author:   4,
		category: 4,
	},
	{
		title:    "Remote work: 3 years later",
		content:  "It's been 3 years since I switched to fully remote work. The good: better work-life balance, no commute, flexibility. The challenging: setting boundaries and loneliness sometimes. What has your experience been like?",
		author:   5,
		category: 0,
	},
}

var comments = []seedComment{
	{"AI is a tool, not a replacement. Someone still needs to understand the business logic and architecture!", 0, 2},
	{"I use it daily and it saves me hours. But I still need to review and understand everything it suggests.", 0, 3},
	{"Don't forget about proper TypeScript usage! Type safety has saved me from so many bugs.", 1, 1},
	{"Milos is incredible! The lunar landscape of Sarakiniko beach is unforgettable.", 2, 5},
	{"Adding Naxos to your list - amazing local food and beautiful villages!", 2, 4},
	{"Try adding a bit of semolina flour - gives it a better texture!", 3, 1},
	{"Once you go fresh, you never go back.", 3, 2},
	{"Hybrid is my sweet spot. Two days office for collaboration, three days home for deep work.", 4, 3},
}

// Run loads the demo data. It is a no-op when categories already exist,
// so rerunning the command is safe.
func Run(ctx context.Context, dbConn *sql.DB, log *logrus.Logger) error {
	categoryRepo := store.NewCategoryRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)

	existing, err := categoryRepo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("database already seeded, skipping")
		return nil
	}

	createdCategories := make([]types.Category, 0, len(categories))
	for _, category := range categories {
		created, err := categoryRepo.Create(ctx, category)
		if err != nil {
			return err
		}
		createdCategories = append(createdCategories, created)
	}

	createdUsers := make([]types.User, 0, len(users))
	for _, user := range users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(user.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		created, err := userRepo.Create(ctx, types.User{
			Username:     user.username,
			Email:        user.email,
			Role:         user.role,
			PasswordHash: string(hashed),
		})
		if err != nil {
			return err
		}
		createdUsers = append(createdUsers, created)
	}

	createdPosts := make([]types.Post, 0, len(posts))
	for _, post := range posts {
		created, err := postRepo.Create(ctx, types.Post{
			Title:      post.title,
			Content:    post.content,
			UserID:     createdUsers[post.author].ID,
			CategoryID: createdCategories[post.category].ID,
		})
		if err != nil {
			return err
		}
		createdPosts = append(createdPosts, created)
	}

	for _, comment := range comments {
		if _, err := commentRepo.Create(ctx, types.Comment{
			Content: comment.content,
			PostID:  createdPosts[comment.post].ID,
			UserID:  createdUsers[comment.author].ID,
		}); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"categories": len(createdCategories),
		"users":      len(createdUsers),
		"posts":      len(createdPosts),
		"comments":   len(comments),
	}).Info("database seeded")
	return nil
}

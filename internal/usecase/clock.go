package usecase

import repo "bookstore/internal/repository"

// repoと同じ時計を使う
type Clock = repo.Clock

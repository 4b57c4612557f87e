// Package messages holds the bot's fixed Hebrew replies. Static intents
// (greeting, order redirect, category list) and guard outcomes (safety
// refusal, clarification, errors) are answered from here without a
// second model call, so the wording is exact and never drifts.
package messages

import "fmt"

// BusinessInfo is the greeting and business welcome message.
func BusinessInfo(orderURL string) string {
	return fmt.Sprintf(`שלום! ברוכים הבאים לפיקניק מעדנים 👋

אני בוט מידע שכאן כדי לעזור לך למצוא מנות ולענות על שאלות לגבי התפריט שלנו 😊

אנחנו עסק משפחתי עם מסורת של יותר מ-50 שנים בגבעתיים. מאז 1969 אנחנו מתמחים בייצור אוכל מוכן וסלטים טריים, ביתיים ואיכותיים, עם חומרי הגלם הכי טובים והקפדה על טעם, ניקיון ושירות מצוין.

🍽️ יש לנו מבחר עשיר של:
🥗 מנות עיקריות וסלטים (מעל 150 סוגים!)
🌱 מנות טבעוניות וללא גלוטן
🧀 גבינות ו🐟 דגים מעושנים
🥖 מאפים, 🍲 מרקים ו🍰 קינוחים
🎉 אוכל לאירועים קטנים וארוחות מוכנות לארגונים

⏰ שעות פעילות:
א-ד: 8:00-19:00 | ה: 8:00-20:00 | ו: 6:30-15:00

איך אני יכול לעזור לך היום? אפשר לשאול על מנות ספציפיות, קטגוריות, או כל שאלה אחרת!

🌐 לאתר: https://picnicmaadanim.co.il/

🛒 להזמנה: %s`, orderURL)
}

// OrderRedirect points the user at the ordering site. The bot never
// takes orders itself.
func OrderRedirect(orderURL string) string {
	return fmt.Sprintf(`אשמח לעזור! 😊

אני בוט מידע שכאן כדי לעזור לך למצוא מנות ולענות על שאלות לגבי התפריט שלנו.

כדי להזמין, אשמח להפנות אותך לאתר ההזמנות שלנו:
🌐 %s

יש לך שאלות נוספות לגבי המנות שלנו? אני כאן לעזור! 😊`, orderURL)
}

// CategoryList enumerates the menu categories.
func CategoryList() string {
	return `יש לנו מבחר גדול של מנות! איזו קטגוריה מעניינת אותך?

📋 הקטגוריות שלנו:

🥗 **סלטים ומנות עיקריות:**
🥗 סלטים - מעל 165 סוגים! (חציל, חומוס, טחינה, דגים, גזר, כרוב ועוד)
🥩 בשר - מנות בשר ביתיות מוכנות
🍗 עוף - מנות עוף מוכנות
🐟 דגים - מנות דגים טריות
🐠 סלטי דגים - סלטים מבוססי דגים
🎣 דג מעושן - דגים מעושנים
🌱 טבעוני - מנות טבעוניות

🧀 **מוצרי חלב וממרחים:**
🧀 גבינות - מבחר גבינות
🥫 ממרחים - ממרחים ביתיים

🥖 **מאפים ומוצרי בצק:**
🥖 מאפים - לחמים ומאפים טריים (קרואסונים, בורקסים)
🥧 פשטידות - פשטידות ביתיות

🍲 **מרקים ותוספות:**
🍲 מרקים - מרקים חמים
🍤 טוגנים - מאכלים מטוגנים
🥒 חמוצים - מלפפונים וירקות חמוצים
🍚 תוספות - תוספות למנות

🍰 **קטגוריות מתוקות:**
🍰 קינוחים - עוגות, מוסים, טירמיסו (לא עוגיות!)
🍩 עוגיות - עוגיות וביסקוויטים בלבד
🍪 קרקרים - קרקרים ופריכיות

✨ **מיוחדים:**
✨ ספיישל שישי - מנות מיוחדות ליום שישי

ספר לי איזו קטגוריה מעניינת אותך ואציג לך מנות ספציפיות!`
}

// SafetyRefusal answers flagged hostile input. Deliberately bland: it
// confirms nothing about why the message was refused.
func SafetyRefusal() string {
	return "אני כאן כדי לעזור עם שאלות על התפריט שלנו 😊 איך אפשר לעזור?"
}

// Clarification asks the user to name a category or dish when a menu
// request arrived with no usable context.
func Clarification() string {
	return "איזו קטגוריה או מנה מעניינת אותך? אפשר למשל סלטים, מרקים, קינוחים או שם של מנה ספציפית 😊"
}

// Empty answers a blank or whitespace-only message.
func Empty() string {
	return "לא קיבלתי הודעה. איך אפשר לעזור לך? 😊"
}

// GenericError is the user-facing apology for internal failures.
func GenericError() string {
	return "מצטערים, אירעה שגיאה. אנא נסה שוב."
}
